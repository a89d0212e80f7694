// Package portal drives an Odyssey public access portal.
//
// A Navigator walks the portal the way a browser would: it loads the
// landing page, follows the calendar search link, collects the hidden
// form tokens, and then posts judicial officer calendar searches. Each
// step is fetched through the verifier, so a page that comes back without
// its marker is re-fetched before the walk gives up.
//
//	nav := portal.NewNavigator(profile, tr, portal.Options{Logger: log})
//	state, err := nav.Establish(ctx)
//	page, state, err := nav.Search(ctx, state, query)
//
// Every version-dependent selector lives in Layout. County profiles are
// embedded in profiles.yaml and can be overlaid from a file.
package portal
