package importer

// ImportRow is one normalized spreadsheet row. Absent values are nil.
type ImportRow struct {
	SourceRow int `json:"source_row"`

	SlNo                  *string `json:"sl_no"`
	ListType              *string `json:"list_type"`
	Type                  *string `json:"type"`
	StatusRaw             *string `json:"status"`
	CustodianCode         *string `json:"custodian_code"`
	UnloCode              *string `json:"unlo_code"`
	ShortName             *string `json:"short_name"`
	CustodianOrganization *string `json:"custodian_organization"`
	State                 *string `json:"state"`
	SiteAddress           *string `json:"site_address"`
	City                  *string `json:"city"`
	Pincode               *string `json:"pincode"`
	CategoryOfSite        *string `json:"category_of_site"`
	ContactPersonName     *string `json:"contact_person_name"`
	ContactPersonNumber   *string `json:"contact_person_number"`
	CustomerName          *string `json:"customer_name"`
	MobileNo              *string `json:"mobile_no"`
	ClientEmail           *string `json:"client_email"`
	Notes                 *string `json:"notes"`

	// StageFlags holds stage codes marked done in the sheet's flag columns.
	StageFlags map[string]bool `json:"stage_flags,omitempty"`

	Fingerprint Fingerprint `json:"-"`
	Problems    []string    `json:"problems,omitempty"`
}

// Valid reports whether the row passed field validation.
func (r *ImportRow) Valid() bool { return len(r.Problems) == 0 }

// CompletedStages lists stage codes flagged in the row.
func (r *ImportRow) CompletedStages() []string {
	out := make([]string, 0, len(r.StageFlags))
	for code, done := range r.StageFlags {
		if done {
			out = append(out, code)
		}
	}
	return out
}

// KeyFields returns the values that make up the duplicate fingerprint, in
// fingerprint order.
func (r *ImportRow) KeyFields() [8]*string {
	return [8]*string{
		r.SlNo,
		r.CustodianCode,
		r.UnloCode,
		r.ShortName,
		r.CustodianOrganization,
		r.State,
		r.SiteAddress,
		r.Pincode,
	}
}

func (r *ImportRow) field(key string) **string {
	switch key {
	case "sl_no":
		return &r.SlNo
	case "list_type":
		return &r.ListType
	case "type":
		return &r.Type
	case "status":
		return &r.StatusRaw
	case "custodian_code":
		return &r.CustodianCode
	case "unlo_code":
		return &r.UnloCode
	case "short_name":
		return &r.ShortName
	case "custodian_organization":
		return &r.CustodianOrganization
	case "state":
		return &r.State
	case "site_address":
		return &r.SiteAddress
	case "city":
		return &r.City
	case "pincode":
		return &r.Pincode
	case "category_of_site":
		return &r.CategoryOfSite
	case "contact_person_name":
		return &r.ContactPersonName
	case "contact_person_number":
		return &r.ContactPersonNumber
	case "customer_name":
		return &r.CustomerName
	case "mobile_no":
		return &r.MobileNo
	case "client_email":
		return &r.ClientEmail
	case "notes":
		return &r.Notes
	default:
		return nil
	}
}

// Get returns the value of a canonical field.
func (r *ImportRow) Get(key string) *string {
	if p := r.field(key); p != nil {
		return *p
	}
	return nil
}

func (r *ImportRow) set(key string, v *string) bool {
	p := r.field(key)
	if p == nil {
		return false
	}
	*p = v
	return true
}
