package extract

import (
	"fmt"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/models"
)

const (
	// chargeHeader is the table title plus the Charges, Statute, Level and Date column labels
	chargeHeader = 5
	// chargeStride is the entry number followed by the four charge values
	chargeStride = 5
)

// parseCharges decodes the flattened text nodes of the charge table
func parseCharges(tokens []string) ([]models.Charge, error) {
	if len(tokens) < chargeHeader {
		return nil, &errs.ParseError{
			Table:  TableCharges,
			Reason: fmt.Sprintf("expected %d header cells, found %d", chargeHeader, len(tokens)),
		}
	}
	if rest := len(tokens) - chargeHeader; rest%chargeStride != 0 {
		return nil, &errs.ParseError{
			Table:  TableCharges,
			Reason: fmt.Sprintf("%d trailing cells do not form whole charges", rest%chargeStride),
		}
	}

	charges := make([]models.Charge, 0, (len(tokens)-chargeHeader)/chargeStride)
	for i := chargeHeader; i < len(tokens); i += chargeStride {
		charges = append(charges, models.Charge{
			Charges: tokens[i+1],
			Statute: tokens[i+2],
			Level:   tokens[i+3],
			Date:    tokens[i+4],
		})
	}
	return charges, nil
}
