// Package setup builds the first-run configuration form.
package setup

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/notification-monitor/internal/model"
)

// Form edits the connection settings of an AppConfig.
type Form struct {
	cfg *model.AppConfig

	baseURL   string
	listPath  string
	pushPath  string
	debounce  string
	timeout   string
	history   bool
	confirmed bool

	form *huh.Form
}

// New creates a form prefilled from cfg. cfg is only modified by Apply.
func New(cfg *model.AppConfig) *Form {
	f := &Form{
		cfg:       cfg,
		baseURL:   cfg.BaseURL,
		listPath:  cfg.ListPath,
		pushPath:  cfg.PushPath,
		debounce:  strconv.Itoa(cfg.DebounceMs),
		timeout:   strconv.Itoa(cfg.FetchTimeoutSec),
		history:   cfg.History.Enabled,
		confirmed: true,
	}
	f.form = f.build()
	return f
}

func (f *Form) build() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Service URL").
				Description("Root of the notification service (e.g., http://localhost:4000)").
				Placeholder("http://localhost:4000").
				Value(&f.baseURL).
				Validate(ValidateBaseURL),
			huh.NewInput().
				Title("List path").
				Description("Bulk fetch endpoint").
				Placeholder("/api/email/list").
				Value(&f.listPath).
				Validate(validatePath("List path")),
			huh.NewInput().
				Title("Push path").
				Description("Websocket push channel, served from the same host").
				Placeholder("/ws").
				Value(&f.pushPath).
				Validate(validatePath("Push path")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Fetch timeout (seconds)").
				Value(&f.timeout).
				Validate(validateInt("Fetch timeout", 1)),
			huh.NewInput().
				Title("Push debounce (ms)").
				Description("0 refreshes on every event; higher values coalesce bursts").
				Value(&f.debounce).
				Validate(validateInt("Debounce", 0)),
			huh.NewConfirm().
				Title("Keep sync history?").
				Description("Records each refresh in a local SQLite database").
				Value(&f.history),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write configuration?").
				Affirmative("Save").
				Negative("Cancel").
				Value(&f.confirmed),
		),
	)
}

// Run shows the form in the terminal and blocks until it is completed.
// It returns huh.ErrUserAborted if the user cancels.
func (f *Form) Run() error {
	return f.form.Run()
}

// Confirmed reports whether the user chose to save.
func (f *Form) Confirmed() bool {
	return f.confirmed
}

// Apply copies the form values into the config.
func (f *Form) Apply() error {
	debounce, err := strconv.Atoi(strings.TrimSpace(f.debounce))
	if err != nil {
		return fmt.Errorf("debounce: %w", err)
	}
	timeout, err := strconv.Atoi(strings.TrimSpace(f.timeout))
	if err != nil {
		return fmt.Errorf("fetch timeout: %w", err)
	}

	f.cfg.BaseURL = strings.TrimSpace(f.baseURL)
	f.cfg.ListPath = strings.TrimSpace(f.listPath)
	f.cfg.PushPath = strings.TrimSpace(f.pushPath)
	f.cfg.DebounceMs = debounce
	f.cfg.FetchTimeoutSec = timeout
	f.cfg.History.Enabled = f.history

	return f.cfg.Validate()
}

// ValidateBaseURL accepts absolute http and https URLs.
func ValidateBaseURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

func validatePath(fieldName string) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		if strings.ContainsAny(s, " ?#") {
			return fmt.Errorf("%s must be a plain path", fieldName)
		}
		return nil
	}
}

func validateInt(fieldName string, minValue int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%s must be a number", fieldName)
		}
		if n < minValue {
			return fmt.Errorf("%s must be at least %d", fieldName, minValue)
		}
		return nil
	}
}
