// internal/bot/profile.go
package bot

import (
	"strings"

	"github.com/xkilldash9x/inmate-bot/internal/config"
)

// Defaults for blank optional profile fields.
const (
	DefaultLastName    = "Smith"
	DefaultPhone       = "5551234567"
	DefaultDateOfBirth = "02/12/1994"
	DefaultCity        = "Dallas"
	DefaultState       = "Texas"
	DefaultZip         = "471642"
	DefaultAgency      = "Tarrant County Jail"
)

// Profile is the identity used to fill the site's forms. It is passed by value and
// never modified during a run.
type Profile struct {
	Username    string
	Password    string
	FirstName   string
	MiddleName  string
	LastName    string
	Phone       string
	DateOfBirth string
	Address     string
	City        string
	State       string
	Zip         string
	Agency      string
}

// ProfileFromConfig copies the configured profile.
func ProfileFromConfig(c config.ProfileConfig) Profile {
	return Profile{
		Username:    c.Username,
		Password:    c.Password,
		FirstName:   c.FirstName,
		MiddleName:  c.MiddleName,
		LastName:    c.LastName,
		Phone:       c.Phone,
		DateOfBirth: c.DateOfBirth,
		Address:     c.Address,
		City:        c.City,
		State:       c.State,
		Zip:         c.Zip,
		Agency:      c.Agency,
	}
}

// WithDefaults fills blank optional fields. Credentials are left alone so Validate can
// reject them. MiddleName stays blank because blank means "no middle name", and the
// first name and address always come from the caller.
func (p Profile) WithDefaults() Profile {
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&p.LastName, DefaultLastName)
	fill(&p.Phone, DefaultPhone)
	fill(&p.DateOfBirth, DefaultDateOfBirth)
	fill(&p.City, DefaultCity)
	fill(&p.State, DefaultState)
	fill(&p.Zip, DefaultZip)
	fill(&p.Agency, DefaultAgency)
	return p
}

// Validate checks the credentials.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Username) == "" || strings.TrimSpace(p.Password) == "" {
		return ErrMissingCredentials
	}
	return nil
}

// SearchQuery identifies the record to select. At least one field must be set.
type SearchQuery struct {
	RecordID string
	FullName string
}

// Validate rejects a query with neither field set.
func (q SearchQuery) Validate() error {
	if strings.TrimSpace(q.RecordID) == "" && strings.TrimSpace(q.FullName) == "" {
		return ErrEmptyQuery
	}
	return nil
}

// FirstToken is the first whitespace separated token of the name. The site lists
// names last name first, so this is usually the surname.
func (q SearchQuery) FirstToken() string {
	return token(q.FullName, 0)
}

// SecondToken is the second token of the name, or "".
func (q SearchQuery) SecondToken() string {
	return token(q.FullName, 1)
}

func token(s string, i int) string {
	f := strings.Fields(s)
	if i < len(f) {
		return f[i]
	}
	return ""
}

// Attempts returns the search strings in the order they are tried: record id, full
// name, first token, second token. Empty and repeated strings are dropped.
func (q SearchQuery) Attempts() []string {
	seen := make(map[string]bool, 4)
	var out []string
	for _, s := range []string{q.RecordID, q.FullName, q.FirstToken(), q.SecondToken()} {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// SearchResult is one record found by bulk discovery.
type SearchResult struct {
	State      string `json:"state"`
	Agency     string `json:"agency"`
	InmateName string `json:"inmateName"`
	InmateID   string `json:"inmateId"`
}
