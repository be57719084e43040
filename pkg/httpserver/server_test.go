package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Rigellute/walk-the-world-frontend/pkg/config"
	"github.com/Rigellute/walk-the-world-frontend/pkg/email"
	"github.com/Rigellute/walk-the-world-frontend/pkg/identity"
	"github.com/Rigellute/walk-the-world-frontend/pkg/session"
	"github.com/Rigellute/walk-the-world-frontend/pkg/steps"
)

const (
	testEmail    = "walker@ucl.ac.uk"
	testPassword = "Walking4Life"
	testAdmin    = "admin@ucl.ac.uk"
)

var fastPasswordParams = identity.PasswordParams{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}

// fakeStepsAPI stands in for the remote steps service.
type fakeStepsAPI struct {
	mu         sync.Mutex
	record     steps.Record
	totalErr   error
	submitErr  error
	totalCalls int
	submitted  []int64
	bearers    []string
}

func (f *fakeStepsAPI) Total(ctx context.Context, bearer string) (steps.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totalCalls++
	f.bearers = append(f.bearers, bearer)
	if f.totalErr != nil {
		return steps.Record{}, f.totalErr
	}
	return f.record, nil
}

func (f *fakeStepsAPI) Submit(ctx context.Context, bearer string, n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bearers = append(f.bearers, bearer)
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, n)
	return nil
}

func (f *fakeStepsAPI) calls() (total int, submitted []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totalCalls, append([]int64(nil), f.submitted...)
}

// flakyProvider fails every session probe with a provider outage.
type flakyProvider struct {
	identity.Provider
}

func (flakyProvider) CurrentSession(ctx context.Context, tokens identity.Tokens) (identity.Session, error) {
	return identity.Session{}, &identity.Error{Code: identity.CodeServiceUnavailable, Message: "The sign in service is unavailable. Please try again later."}
}

// countingProvider counts session probes made through it.
type countingProvider struct {
	identity.Provider
	mu     sync.Mutex
	probes int
}

func (p *countingProvider) CurrentSession(ctx context.Context, tokens identity.Tokens) (identity.Session, error) {
	p.mu.Lock()
	p.probes++
	p.mu.Unlock()
	return p.Provider.CurrentSession(ctx, tokens)
}

func (p *countingProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.probes
}

type WebSuite struct {
	suite.Suite
	provider *identity.MemoryProvider
	stepsAPI *fakeStepsAPI
	mailer   *email.RecordingSender
	server   *Server
	ts       *httptest.Server
	client   *http.Client
}

func TestWebSuite(t *testing.T) {
	suite.Run(t, new(WebSuite))
}

func testConfig() *config.Config {
	return &config.Config{
		HTTPAddress:        ":0",
		TemplatesDir:       "../../templates",
		StaticDir:          "../../static",
		IdentityBackend:    config.IdentityBackendMemory,
		APIGatewayURL:      "http://steps.invalid",
		SignupEnabled:      true,
		MaxDailySteps:      30000,
		SessionTTL:         time.Hour,
		RateLimitPerMinute: 0,
		AdminEmail:         testAdmin,
	}
}

func (s *WebSuite) SetupTest() {
	s.start(nil)
}

func (s *WebSuite) TearDownTest() {
	s.stop()
}

// start builds a fresh server. mutate may adjust the config first.
func (s *WebSuite) start(mutate func(*config.Config)) {
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	s.mailer = &email.RecordingSender{}
	provider, err := identity.NewMemoryProvider(s.mailer, identity.WithPasswordParams(fastPasswordParams))
	s.Require().NoError(err)
	s.Require().NoError(provider.AddUser(testEmail, testPassword))
	s.provider = provider

	s.stepsAPI = &fakeStepsAPI{record: steps.Record{Steps: 1000, CalculatedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)}}
	s.server = New(cfg, provider, s.stepsAPI, s.mailer)
	s.ts = httptest.NewServer(s.server.Router())

	jar, err := cookiejar.New(nil)
	s.Require().NoError(err)
	s.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (s *WebSuite) stop() {
	s.ts.Close()
	s.NoError(s.server.Close())
}

// useProvider rebuilds the server around provider, keeping the other
// collaborators.
func (s *WebSuite) useProvider(provider identity.Provider) {
	s.stop()
	s.server = New(testConfig(), provider, s.stepsAPI, s.mailer)
	s.ts = httptest.NewServer(s.server.Router())
}

func (s *WebSuite) restart(mutate func(*config.Config)) {
	s.stop()
	s.start(mutate)
}

func (s *WebSuite) get(path string) *http.Response {
	resp, err := s.client.Get(s.ts.URL + path)
	s.Require().NoError(err)
	return resp
}

func (s *WebSuite) post(path string, form url.Values) *http.Response {
	resp, err := s.client.PostForm(s.ts.URL+path, form)
	s.Require().NoError(err)
	return resp
}

func (s *WebSuite) document(resp *http.Response) *goquery.Document {
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	s.Require().NoError(err)
	return doc
}

func (s *WebSuite) hasCookie(name string) bool {
	u, err := url.Parse(s.ts.URL)
	s.Require().NoError(err)
	for _, c := range s.client.Jar.Cookies(u) {
		if c.Name == name {
			return true
		}
	}
	return false
}

// confirmationCode returns the code most recently mailed to addr.
func (s *WebSuite) confirmationCode(addr string) string {
	msg, ok := s.mailer.Last(addr)
	s.Require().True(ok)
	code := regexp.MustCompile(`\d{6}`).FindString(msg.Text)
	s.Require().NotEmpty(code)
	return code
}

func (s *WebSuite) login() {
	resp := s.post("/login", url.Values{"email": {testEmail}, "password": {testPassword}})
	resp.Body.Close()
	s.Require().Equal(http.StatusSeeOther, resp.StatusCode)
	s.Require().Equal("/", resp.Header.Get("Location"))
}

func (s *WebSuite) TestHealth() {
	resp := s.get("/health")
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *WebSuite) TestHomeAnonymousShowsPromptNotForm() {
	resp := s.get("/")
	s.Equal(http.StatusOK, resp.StatusCode)
	doc := s.document(resp)

	s.Equal(0, doc.Find("#steps-form").Length())
	s.Equal(1, doc.Find("#auth-prompt").Length())
	s.Equal(1, doc.Find(`#auth-prompt a[href="/login"]`).Length())
	s.Equal(1, doc.Find(`#auth-prompt a[href="/signup"]`).Length())
	s.Equal(0, doc.Find(".alert-error").Length(), "no session is not an error")
	s.Equal("1,000", strings.TrimSpace(doc.Find("[data-steps]").Text()))
	s.Contains(doc.Find(".stat-as-of").Text(), "As of 1 May 2024, 09:30 UTC")
}

func (s *WebSuite) TestHomeFormatsTotalForLocale() {
	req, err := http.NewRequest(http.MethodGet, s.ts.URL+"/", nil)
	s.Require().NoError(err)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	resp, err := s.client.Do(req)
	s.Require().NoError(err)

	doc := s.document(resp)
	s.Equal("1.000", strings.TrimSpace(doc.Find("[data-steps]").Text()))
}

func (s *WebSuite) TestHomeShowsFetchErrorInPlaceOfStat() {
	s.stepsAPI.totalErr = &steps.Error{Kind: steps.KindUnavailable, StatusCode: 503, Message: "request failed: 503 Service Unavailable"}

	resp := s.get("/")
	s.Equal(http.StatusOK, resp.StatusCode)
	doc := s.document(resp)

	s.Equal(0, doc.Find("[data-steps]").Length())
	s.Equal("request failed: 503 Service Unavailable", strings.TrimSpace(doc.Find("#total .error").Text()))
}

func (s *WebSuite) TestProbeFailureShowsAlert() {
	s.useProvider(flakyProvider{Provider: s.provider})

	doc := s.document(s.get("/"))
	s.Equal("The sign in service is unavailable. Please try again later.", strings.TrimSpace(doc.Find(".alert-error").Text()))
	s.Equal(0, doc.Find("#steps-form").Length())
}

func (s *WebSuite) TestLoginThenHomeShowsStepsForm() {
	s.login()

	doc := s.document(s.get("/"))
	s.Equal(1, doc.Find("#steps-form").Length())
	s.Equal(0, doc.Find("#auth-prompt").Length())
	s.Equal(testEmail, strings.TrimSpace(doc.Find(".nav-user").Text()))
	s.Equal(1, doc.Find(`form[action="/logout"]`).Length())
}

func (s *WebSuite) TestLoginWrongPasswordShowsInlineError() {
	resp := s.post("/login", url.Values{"email": {testEmail}, "password": {"WrongPass1"}})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	doc := s.document(resp)

	s.Equal("Incorrect username or password.", strings.TrimSpace(doc.Find("#login-form .form-error").Text()))
	email, _ := doc.Find("#email").Attr("value")
	s.Equal(testEmail, email)
	password, _ := doc.Find("#password").Attr("value")
	s.Empty(password)
}

func (s *WebSuite) TestLoginValidationErrorsNeverReachProvider() {
	resp := s.post("/login", url.Values{"email": {"not-an-email"}, "password": {"short"}})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	doc := s.document(resp)

	s.Equal("Invalid email address", strings.TrimSpace(doc.Find(`[data-error-for="email"]`).Text()))
	s.Equal("Password must be 8 characters or more", strings.TrimSpace(doc.Find(`[data-error-for="password"]`).Text()))
	s.Empty(strings.TrimSpace(doc.Find(".form-error").Text()))
}

func (s *WebSuite) TestLogout() {
	s.login()

	resp := s.post("/logout", nil)
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal(0, s.server.sessions.Store().Len())
	s.False(s.hasCookie(session.CookieName))

	doc := s.document(s.get("/"))
	s.Equal(0, doc.Find("#steps-form").Length())
	s.Equal(1, doc.Find(`.nav a[href="/login"]`).Length())
}

func (s *WebSuite) TestStepsSubmissionAddsOptimisticallyWithoutRefetch() {
	s.login()
	s.document(s.get("/"))

	resp := s.post("/steps", url.Values{"steps": {"500"}})
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))

	doc := s.document(s.get("/"))
	s.Equal("1,500", strings.TrimSpace(doc.Find("[data-steps]").Text()))
	s.Contains(doc.Find("[data-flash]").Text(), "Steps added")

	totalCalls, submitted := s.stepsAPI.calls()
	s.Equal(1, totalCalls, "the optimistic total must not trigger a fetch")
	s.Equal([]int64{500}, submitted)

	s.stepsAPI.mu.Lock()
	bearers := append([]string(nil), s.stepsAPI.bearers...)
	s.stepsAPI.mu.Unlock()
	for _, bearer := range bearers {
		s.NotEmpty(bearer)
	}

	// The flash is shown once; the next render fetches again.
	doc = s.document(s.get("/"))
	s.Equal(0, doc.Find("[data-flash]").Length())
	totalCalls, _ = s.stepsAPI.calls()
	s.Equal(2, totalCalls)
}

func (s *WebSuite) TestStepsAlreadySubmittedShowsExactMessage() {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "classified at the API boundary",
			err:  &steps.Error{Kind: steps.KindAlreadySubmitted, StatusCode: 400, Message: "Bad Request"},
		},
		{
			name: "message carrying the status code",
			err:  errors.New("Request failed with status code 400"),
		},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.restart(nil)
			s.stepsAPI.submitErr = tt.err
			s.login()

			resp := s.post("/steps", url.Values{"steps": {"500"}})
			s.Equal(http.StatusBadRequest, resp.StatusCode)
			doc := s.document(resp)
			s.Equal(steps.AlreadySubmittedMessage, strings.TrimSpace(doc.Find("#steps-form .form-error").Text()))
		})
	}
}

func (s *WebSuite) TestStepsOtherFailureShowsItsMessage() {
	s.stepsAPI.submitErr = &steps.Error{Kind: steps.KindUnavailable, StatusCode: 502, Message: "submission failed: 502 Bad Gateway"}
	s.login()

	resp := s.post("/steps", url.Values{"steps": {"500"}})
	s.Equal(http.StatusBadGateway, resp.StatusCode)
	doc := s.document(resp)
	s.Equal("submission failed: 502 Bad Gateway", strings.TrimSpace(doc.Find("#steps-form .form-error").Text()))
}

func (s *WebSuite) TestStepsValidation() {
	s.login()

	tests := []struct {
		steps string
		want  string
	}{
		{"", "Required"},
		{"0", "Steps must be a positive whole number"},
		{"-5", "Steps must be a positive whole number"},
		{"30001", "That's too many steps! The maximum is 30,000"},
	}
	for _, tt := range tests {
		resp := s.post("/steps", url.Values{"steps": {tt.steps}})
		s.Equal(http.StatusBadRequest, resp.StatusCode, tt.steps)
		doc := s.document(resp)
		s.Equal(tt.want, strings.TrimSpace(doc.Find(`[data-error-for="steps"]`).Text()), tt.steps)
	}
	_, submitted := s.stepsAPI.calls()
	s.Empty(submitted)
}

func (s *WebSuite) TestStepsCapDisabled() {
	s.restart(func(cfg *config.Config) { cfg.MaxDailySteps = 0 })
	s.login()

	doc := s.document(s.get("/"))
	_, hasMax := doc.Find("#steps").Attr("max")
	s.False(hasMax)

	resp := s.post("/steps", url.Values{"steps": {"30001"}})
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	_, submitted := s.stepsAPI.calls()
	s.Equal([]int64{30001}, submitted)
}

func (s *WebSuite) TestStepsCapRenderedOnInput() {
	s.login()

	doc := s.document(s.get("/"))
	maxAttr, _ := doc.Find("#steps").Attr("max")
	s.Equal("30000", maxAttr)
}

func (s *WebSuite) TestStepsRejectedTokenSignsOut() {
	s.stepsAPI.submitErr = &steps.Error{Kind: steps.KindUnauthorized, StatusCode: 401, Message: "Unauthorized"}
	s.login()

	resp := s.post("/steps", url.Values{"steps": {"500"}})
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/login", resp.Header.Get("Location"))
	s.False(s.hasCookie(session.CookieName))

	doc := s.document(s.get("/login"))
	s.Contains(doc.Find("[data-flash]").Text(), "Session expired")

	doc = s.document(s.get("/"))
	s.Equal(0, doc.Find("#steps-form").Length())
}

func (s *WebSuite) TestStepsRequiresAuthentication() {
	resp := s.post("/steps", url.Values{"steps": {"500"}})
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/login", resp.Header.Get("Location"))

	_, submitted := s.stepsAPI.calls()
	s.Empty(submitted)
}

func (s *WebSuite) TestUnknownPathRendersNotFound() {
	check := func() {
		for _, path := range []string{"/unknown-path", "/steps/extra", "/login/"} {
			resp := s.get(path)
			s.Equal(http.StatusNotFound, resp.StatusCode, path)
			doc := s.document(resp)
			s.Equal("Sorry, page not found!", strings.TrimSpace(doc.Find("#not-found h1").Text()), path)
		}
	}
	check()
	s.login()
	check()

	// Wrong method on a known path is not found too.
	resp := s.get("/steps")
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *WebSuite) TestSignupFlow() {
	const newEmail = "new.walker@ucl.ac.uk"

	doc := s.document(s.get("/signup"))
	s.Equal(1, doc.Find("#signup-form").Length())
	s.Equal(1, doc.Find("#confirmPassword").Length())

	resp := s.post("/signup", url.Values{
		"step":            {"credentials"},
		"email":           {newEmail},
		"password":        {"Strider2024"},
		"confirmPassword": {"Strider2024"},
	})
	s.Equal(http.StatusOK, resp.StatusCode)
	doc = s.document(resp)
	s.Equal(1, doc.Find("#confirmationCode").Length())
	s.Contains(doc.Text(), "Check your email for the code")

	code := s.confirmationCode(newEmail)

	wrong := code[:5] + string('0'+(code[5]-'0'+1)%10)
	resp = s.post("/signup", url.Values{"step": {"confirmation"}, "confirmationCode": {wrong}})
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	doc = s.document(resp)
	s.Equal("Invalid verification code provided, please try again.", strings.TrimSpace(doc.Find(".form-error").Text()))
	s.Equal(1, doc.Find("#confirmationCode").Length(), "stays on the confirmation step")

	resp = s.post("/signup", url.Values{"step": {"confirmation"}, "confirmationCode": {code}})
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/", resp.Header.Get("Location"))

	doc = s.document(s.get("/"))
	s.Contains(doc.Find("[data-flash]").Text(), "Account created.")
	s.Equal(1, doc.Find("#steps-form").Length())
	s.Equal(newEmail, strings.TrimSpace(doc.Find(".nav-user").Text()))
}

func (s *WebSuite) TestSessionCarriesAcrossInstances() {
	const secret = "shared-session-secret"
	s.restart(func(cfg *config.Config) { cfg.SessionSecret = secret })

	cfg := testConfig()
	cfg.SessionSecret = secret
	other := New(cfg, s.provider, s.stepsAPI, s.mailer)
	defer other.Close()
	otherTS := httptest.NewServer(other.Router())
	defer otherTS.Close()

	// Cookies are shared across ports on the same host, so the second
	// instance sees whatever the first one set.
	const newEmail = "roamer@ucl.ac.uk"
	resp := s.post("/signup", url.Values{
		"step":            {"credentials"},
		"email":           {newEmail},
		"password":        {"Strider2024"},
		"confirmPassword": {"Strider2024"},
	})
	resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp, err := s.client.PostForm(otherTS.URL+"/signup", url.Values{
		"step":             {"confirmation"},
		"confirmationCode": {s.confirmationCode(newEmail)},
	})
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)

	doc := s.document(s.get("/"))
	s.Equal(1, doc.Find("#steps-form").Length())
	s.Equal(newEmail, strings.TrimSpace(doc.Find(".nav-user").Text()))

	resp, err = s.client.Get(otherTS.URL + "/")
	s.Require().NoError(err)
	doc = s.document(resp)
	s.Equal(1, doc.Find("#steps-form").Length())
}

func (s *WebSuite) TestSessionFromAnotherSecretIsIgnored() {
	s.login()
	jar := s.client.Jar
	s.restart(nil)
	s.client.Jar = jar

	doc := s.document(s.get("/"))
	s.Equal(0, doc.Find("#steps-form").Length())
	s.Equal(0, doc.Find(".alert-error").Length())
}

func (s *WebSuite) TestSignupCredentialErrorsStayOnFirstStep() {
	resp := s.post("/signup", url.Values{
		"step":            {"credentials"},
		"email":           {testEmail},
		"password":        {"Strider2024"},
		"confirmPassword": {"Strider2025"},
	})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	doc := s.document(resp)
	s.Equal("Please confirm your password is correct", strings.TrimSpace(doc.Find(`[data-error-for="confirmPassword"]`).Text()))

	resp = s.post("/signup", url.Values{
		"step":            {"credentials"},
		"email":           {testEmail},
		"password":        {"Strider2024"},
		"confirmPassword": {"Strider2024"},
	})
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
	doc = s.document(resp)
	s.Equal("An account with the given email already exists.", strings.TrimSpace(doc.Find(".form-error").Text()))
	s.Equal(0, doc.Find("#confirmationCode").Length())
}

func (s *WebSuite) TestSignupConfirmationWithoutPendingSignup() {
	resp := s.post("/signup", url.Values{"step": {"confirmation"}, "confirmationCode": {"123456"}})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	doc := s.document(resp)
	s.Equal(1, doc.Find("#confirmPassword").Length(), "back on the credentials step")
	s.NotEmpty(strings.TrimSpace(doc.Find(".form-error").Text()))
}

func (s *WebSuite) TestSignupDisabledRequestsAccess() {
	s.restart(func(cfg *config.Config) { cfg.SignupEnabled = false })

	doc := s.document(s.get("/signup"))
	s.Equal(1, doc.Find("#signup-disabled").Length())
	s.Equal(0, doc.Find("#signup-form").Length())
	s.Equal(1, doc.Find("#access-form").Length())

	resp := s.post("/signup", url.Values{"email": {"a@b.co"}})
	resp.Body.Close()
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp = s.post("/request-access", url.Values{"name": {""}, "email": {"nope"}})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
	s.Empty(s.mailer.Messages())

	resp = s.post("/request-access", url.Values{
		"name":    {"Ada Walker"},
		"email":   {"ada@ucl.ac.uk"},
		"message": {"I walk a lot"},
	})
	resp.Body.Close()
	s.Equal(http.StatusSeeOther, resp.StatusCode)
	s.Equal("/signup", resp.Header.Get("Location"))

	messages := s.mailer.Messages()
	s.Require().Len(messages, 1)
	s.Equal(testAdmin, messages[0].To)
	s.Equal("ada@ucl.ac.uk", messages[0].ReplyTo)

	doc = s.document(s.get("/signup"))
	s.Contains(doc.Find("[data-flash]").Text(), "Request sent")
}

func (s *WebSuite) TestSignupDisabledWithoutAdminHidesAccessForm() {
	s.restart(func(cfg *config.Config) {
		cfg.SignupEnabled = false
		cfg.AdminEmail = ""
	})

	doc := s.document(s.get("/signup"))
	s.Equal(1, doc.Find("#signup-disabled").Length())
	s.Equal(0, doc.Find("#access-form").Length())

	resp := s.post("/request-access", url.Values{"name": {"Ada"}, "email": {"ada@ucl.ac.uk"}})
	resp.Body.Close()
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	s.Empty(s.mailer.Messages())
}

func (s *WebSuite) TestValidateReportsTouchedFieldsOnly() {
	resp := s.post("/validate/login", url.Values{
		"email":    {"bad"},
		"password": {""},
		"touched":  {"email"},
	})
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("application/json", resp.Header.Get("Content-Type"))

	var body ValidationResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.Equal("Invalid email address", body.Errors["email"])
	s.NotContains(body.Errors, "password")
}

func (s *WebSuite) TestValidateSignupConfirmationSkipsEmailPattern() {
	resp := s.post("/validate/signup", url.Values{
		"step":             {"confirmation"},
		"email":            {"whatever"},
		"confirmationCode": {""},
		"touched":          {"email,confirmationCode"},
	})
	defer resp.Body.Close()

	var body ValidationResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.NotContains(body.Errors, "email")
	s.Equal("You must enter the confirmation code", body.Errors["confirmationCode"])
}

func (s *WebSuite) TestValidateUnknownForm() {
	resp := s.post("/validate/nope", url.Values{})
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *WebSuite) TestValidateNeverProbesSession() {
	counter := &countingProvider{Provider: s.provider}
	s.useProvider(counter)
	s.login()
	before := counter.count()

	resp := s.post("/validate/login", url.Values{"email": {"bad"}, "touched": {"email"}})
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	resp = s.post("/validate/nope", url.Values{})
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal(before, counter.count())

	s.document(s.get("/"))
	s.Equal(before+1, counter.count(), "one probe per page view")
}

func (s *WebSuite) TestValidateLeavesFlashForNextPage() {
	s.login()
	s.document(s.get("/"))

	resp := s.post("/steps", url.Values{"steps": {"500"}})
	resp.Body.Close()
	s.Require().Equal(http.StatusSeeOther, resp.StatusCode)

	resp = s.post("/validate/steps", url.Values{"steps": {"12"}, "touched": {"steps"}})
	resp.Body.Close()

	doc := s.document(s.get("/"))
	s.Contains(doc.Find("[data-flash]").Text(), "Steps added")
}

func (s *WebSuite) TestDeferredTotal() {
	s.restart(func(cfg *config.Config) { cfg.LoaderMinDisplay = time.Second })

	doc := s.document(s.get("/"))
	container := doc.Find("[data-total-src]")
	s.Equal(1, container.Length())
	minMS, _ := container.Attr("data-loader-min-ms")
	s.Equal("1000", minMS)
	s.Equal(1, doc.Find(".loader").Length())
	totalCalls, _ := s.stepsAPI.calls()
	s.Equal(0, totalCalls)

	resp := s.get("/total")
	s.Equal(http.StatusOK, resp.StatusCode)
	doc = s.document(resp)
	s.Equal("1,000", strings.TrimSpace(doc.Find("[data-steps]").Text()))
	s.Equal(0, doc.Find("nav").Length(), "fragment has no layout")
}

func (s *WebSuite) TestRateLimitedFormPosts() {
	s.restart(func(cfg *config.Config) { cfg.RateLimitPerMinute = 2 })

	form := url.Values{"email": {testEmail}, "password": {"WrongPass1"}}
	for i := 0; i < 2; i++ {
		resp := s.post("/login", form)
		resp.Body.Close()
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	}
	resp := s.post("/login", form)
	resp.Body.Close()
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)

	// Page views are not limited.
	resp = s.get("/login")
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	s.server.ResetRateLimits()
	resp = s.post("/login", form)
	resp.Body.Close()
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestRouteTableCapabilities(t *testing.T) {
	s := &Server{}
	authenticated := map[string]bool{}
	for _, rt := range s.routeTable() {
		require.NotNil(t, rt.Handle, "%s %s", rt.Method, rt.Pattern)
		if rt.Requires == RequireAuthenticated {
			authenticated[rt.Method+" "+rt.Pattern] = true
		}
	}
	require.Equal(t, map[string]bool{"POST /steps": true}, authenticated)

	tests := []struct {
		name  string
		state session.State
		want  bool
	}{
		{"probing", session.State{IsAuthenticating: true, IsAuthenticated: true}, false},
		{"anonymous", session.State{}, false},
		{"signed in", session.State{IsAuthenticated: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, AnySession.Allows(tt.state))
			assert.Equal(t, tt.want, RequireAuthenticated.Allows(tt.state))
		})
	}
}
