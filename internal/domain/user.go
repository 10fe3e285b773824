package domain

// UserDetails holds delivery-relevant user attributes fetched from the
// external user service. Fields carries the raw profile attributes in string
// form for template substitution ({{user.<key>}}).
type UserDetails struct {
	ID     string
	Email  string
	Phone  string
	Fields map[string]string
}
