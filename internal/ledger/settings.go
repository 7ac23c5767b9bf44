package ledger

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Default names used by Tally exports and the target chart
const (
	DefaultDebtorsAccount   = "Sundry Debtors"
	DefaultCreditorsAccount = "Sundry Creditors"
	DefaultRoundOffAccount  = "Rounded Off"
	DefaultCostCenter       = "Main"
	DefaultWarehouse        = "Stores"
	DefaultChunkSize        = 500
)

// Settings is the per-job configuration passed explicitly into every
// transform and import call.
type Settings struct {
	Company           string `yaml:"company" json:"company"`
	CompanyAbbr       string `yaml:"company_abbr" json:"company_abbr,omitempty"`
	DebtorsAccount    string `yaml:"debtors_account" json:"debtors_account"`
	CreditorsAccount  string `yaml:"creditors_account" json:"creditors_account"`
	DefaultCostCenter string `yaml:"default_cost_center" json:"default_cost_center,omitempty"`
	DefaultWarehouse  string `yaml:"default_warehouse" json:"default_warehouse,omitempty"`
	RoundOffAccount   string `yaml:"round_off_account" json:"round_off_account,omitempty"`
	ChunkSize         int    `yaml:"chunk_size" json:"chunk_size"`
	// SkipValidation inserts documents without reference checks (bulk mode)
	SkipValidation bool `yaml:"skip_validation" json:"skip_validation"`
	// OpeningDate overrides the posting date of the opening balance (YYYY-MM-DD)
	OpeningDate string `yaml:"opening_date" json:"opening_date,omitempty"`
}

// DefaultSettings returns settings with the standard Tally control accounts
func DefaultSettings() Settings {
	s := Settings{}
	s.ApplyDefaults()
	return s
}

// ApplyDefaults fills unset fields
func (s *Settings) ApplyDefaults() {
	if s.DebtorsAccount == "" {
		s.DebtorsAccount = DefaultDebtorsAccount
	}
	if s.CreditorsAccount == "" {
		s.CreditorsAccount = DefaultCreditorsAccount
	}
	if s.RoundOffAccount == "" {
		s.RoundOffAccount = DefaultRoundOffAccount
	}
	if s.ChunkSize <= 0 {
		s.ChunkSize = DefaultChunkSize
	}
}

// Validate checks the settings are usable
func (s Settings) Validate() error {
	if s.DebtorsAccount == "" || s.CreditorsAccount == "" {
		return ErrMissingControlAccount
	}
	if s.DebtorsAccount == s.CreditorsAccount {
		return ErrSameControlAccount
	}
	if s.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	return nil
}

// Abbr returns the company abbreviation, derived from the initials of the
// company name when none is configured.
func (s Settings) Abbr() string {
	if s.CompanyAbbr != "" {
		return s.CompanyAbbr
	}
	var b strings.Builder
	for _, word := range strings.Fields(s.Company) {
		r := []rune(word)[0]
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Qualify appends the company abbreviation to an account or cost center name
func (s Settings) Qualify(name string) string {
	abbr := s.Abbr()
	if name == "" || abbr == "" {
		return name
	}
	suffix := " - " + abbr
	if strings.HasSuffix(name, suffix) {
		return name
	}
	return name + suffix
}

// CostCenter returns the cost center stamped on posting lines
func (s Settings) CostCenter() string {
	if s.DefaultCostCenter != "" {
		return s.DefaultCostCenter
	}
	return s.Qualify(DefaultCostCenter)
}

// Warehouse returns the warehouse stamped on invoice item lines
func (s Settings) Warehouse() string {
	if s.DefaultWarehouse != "" {
		return s.DefaultWarehouse
	}
	return s.Qualify(DefaultWarehouse)
}

// LoadSettings reads job settings from a YAML file
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	return ParseSettings(data, Settings{})
}

// ParseSettings decodes YAML (or JSON) settings over base, applies defaults
// and validates them
func ParseSettings(data []byte, base Settings) (*Settings, error) {
	s := base
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &s, nil
}

// SaveSettings writes job settings as YAML
func SaveSettings(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}
