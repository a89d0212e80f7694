// Package portaltest runs a fake pre-2017 Odyssey portal for tests.
package portaltest

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	Banner        = "Hays County Courts Records Inquiry"
	CalendarLabel = "Court Calendar"
	SearchPath    = "/Search.aspx"
	DetailPath    = "/CaseDetail.aspx"

	sessionCookie = "ASP.NET_SessionId"
	dateLayout    = "01/02/2006"
)

// Server simulates the landing, search, results and case detail pages of
// an Odyssey portal, with per-session view state and failure injection.
type Server struct {
	server *httptest.Server

	mu        sync.RWMutex
	officers  map[string]string // id -> name
	calendar  map[string][]string
	cases     map[string]Case
	sessions  map[string]int // session id -> view state generation
	failures  map[string][]int
	blanks    map[string]int
	delays    map[string]time.Duration
	forms     []url.Values
	robotsTxt string

	requests sync.Map // path -> *int32
	searches int32
}

// New starts a portal with no officers and no cases
func New() *Server {
	s := &Server{
		officers: make(map[string]string),
		calendar: make(map[string][]string),
		cases:    make(map[string]Case),
		sessions: make(map[string]int),
		failures: make(map[string][]int),
		blanks:   make(map[string]int),
		delays:   make(map[string]time.Duration),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleLanding)
	mux.HandleFunc(SearchPath, s.handleSearch)
	mux.HandleFunc(DetailPath, s.handleDetail)
	mux.HandleFunc("/robots.txt", s.handleRobots)

	s.server = httptest.NewServer(s.instrument(mux))
	return s
}

// URL returns the portal root with a trailing slash
func (s *Server) URL() string { return s.server.URL + "/" }

// Close shuts the server down
func (s *Server) Close() { s.server.Close() }

// AddOfficer adds a judicial officer to the roster
func (s *Server) AddOfficer(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.officers[id] = name
}

// AddCase schedules c on the officer's calendar for date
func (s *Server) AddCase(officerID string, date time.Time, c Case) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := calendarKey(officerID, date.Format(dateLayout))
	s.calendar[key] = append(s.calendar[key], c.ID)
	s.cases[c.ID] = c
}

// FailNext makes the next len(statuses) requests to path answer with those statuses
func (s *Server) FailNext(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], statuses...)
}

// BlankNext makes the next n requests to path answer 200 with a page
// carrying none of the expected markers
func (s *Server) BlankNext(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blanks[path] += n
}

// Delay holds every response to path for d after the request is counted
func (s *Server) Delay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = d
}

// SetRobots serves body at /robots.txt
func (s *Server) SetRobots(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.robotsTxt = body
}

// Requests returns how many requests reached path
func (s *Server) Requests(path string) int {
	if v, ok := s.requests.Load(path); ok {
		return int(atomic.LoadInt32(v.(*int32)))
	}
	return 0
}

// Searches returns how many search postbacks rendered results
func (s *Server) Searches() int { return int(atomic.LoadInt32(&s.searches)) }

// SearchForms returns every accepted search postback body
func (s *Server) SearchForms() []url.Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]url.Values, len(s.forms))
	copy(out, s.forms)
	return out
}

func calendarKey(officerID, date string) string {
	return officerID + "@" + date
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter, _ := s.requests.LoadOrStore(r.URL.Path, new(int32))
		atomic.AddInt32(counter.(*int32), 1)

		s.mu.RLock()
		delay := s.delays[r.URL.Path]
		s.mu.RUnlock()
		if delay > 0 {
			time.Sleep(delay)
		}

		s.mu.Lock()
		if queue := s.failures[r.URL.Path]; len(queue) > 0 {
			status := queue[0]
			s.failures[r.URL.Path] = queue[1:]
			s.mu.Unlock()
			w.WriteHeader(status)
			return
		}
		if s.blanks[r.URL.Path] > 0 {
			s.blanks[r.URL.Path]--
			s.mu.Unlock()
			fmt.Fprint(w, "<html><body><p>The system is busy. Please try again.</p></body></html>")
			return
		}
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func newSessionID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// session returns the caller's session id, or "" when it has none
func (s *Server) session(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[c.Value]; !ok {
		return ""
	}
	return c.Value
}

func viewState(session string, generation int) string {
	return fmt.Sprintf("%s-%d", session, generation)
}

const expiredPage = "<html><body><p>Your session has expired.</p></body></html>"

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/default.aspx" {
		http.NotFound(w, r)
		return
	}

	id := newSessionID()
	s.mu.Lock()
	s.sessions[id] = 0
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/"})

	fmt.Fprintf(w, `<html><head><title>Odyssey</title></head><body>
<table><tr><td class="ssPageTitle">%s</td></tr></table>
<table><tr><td>
<label for="sbxControlID2">Select a location</label>
<select id="sbxControlID2" name="sbxControlID2">
<option value="100,101,102">All Courts</option>
<option value="101">County Court at Law</option>
<option value="102">District Courts</option>
</select>
</td></tr>
<tr><td><a class="ssSearchHyperlink" href="Search.aspx?ID=100">Criminal Case Records</a></td></tr>
<tr><td><a class="ssSearchHyperlink" href="Search.aspx?ID=900">%s</a></td></tr>
</table></body></html>`, Banner, CalendarLabel)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	session := s.session(r)
	if session == "" {
		fmt.Fprint(w, expiredPage)
		return
	}

	if r.Method == http.MethodGet {
		s.writeSearchPage(w, session)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	generation := s.sessions[session]
	if r.PostForm.Get("__VIEWSTATE") != viewState(session, generation) {
		s.mu.Unlock()
		fmt.Fprint(w, expiredPage)
		return
	}
	generation++
	s.sessions[session] = generation
	s.forms = append(s.forms, r.PostForm)
	ids := append([]string(nil), s.calendar[calendarKey(r.PostForm.Get("cboJudOffc"), r.PostForm.Get("DateSettingOnAfter"))]...)
	found := make([]Case, 0, len(ids))
	for _, id := range ids {
		found = append(found, s.cases[id])
	}
	s.mu.Unlock()

	atomic.AddInt32(&s.searches, 1)

	var rows strings.Builder
	for _, c := range found {
		fmt.Fprintf(&rows, `<tr><td><a href="CaseDetail.aspx?CaseID=%s">%s</a></td><td>%s</td></tr>`,
			c.ID, html.EscapeString(c.Number), html.EscapeString(c.Name))
	}

	fmt.Fprintf(w, `<html><body><form method="post" action="Search.aspx?ID=900">
<input type="hidden" name="__VIEWSTATE" value="%s">
<input type="hidden" name="__EVENTVALIDATION" value="ev-%d">
</form>
<table><tr><td><b>Record Count:</b> %d</td></tr></table>
<table>%s</table></body></html>`, viewState(session, generation), generation, len(found), rows.String())
}

func (s *Server) writeSearchPage(w http.ResponseWriter, session string) {
	s.mu.RLock()
	generation := s.sessions[session]
	ids := make([]string, 0, len(s.officers))
	for id := range s.officers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var options strings.Builder
	options.WriteString(`<option value=""></option>`)
	for _, id := range ids {
		fmt.Fprintf(&options, `<option value="%s">%s</option>`, id, html.EscapeString(s.officers[id]))
	}
	s.mu.RUnlock()

	fmt.Fprintf(w, `<html><body><form method="post" action="Search.aspx?ID=900">
<input type="hidden" name="__VIEWSTATE" value="%s">
<input type="hidden" name="__VIEWSTATEGENERATOR" value="BBBC20B8">
<input type="hidden" name="__EVENTVALIDATION" value="ev-%d">
<select id="cboJudOffc" name="cboJudOffc">%s</select>
<input type="text" name="DateSettingOnAfter">
<input type="text" name="DateSettingOnBefore">
<input type="submit" name="SearchSubmit" value="Search">
</form></body></html>`, viewState(session, generation), generation, options.String())
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	if s.session(r) == "" {
		fmt.Fprint(w, expiredPage)
		return
	}

	s.mu.RLock()
	c, ok := s.cases[r.URL.Query().Get("CaseID")]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, c.HTML())
}

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	body := s.robotsTxt
	s.mu.RUnlock()
	if body == "" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, body)
}
