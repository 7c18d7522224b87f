package checkout

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/Skotchmaster/storefront/internal/models"
)

var ErrValidation = errors.New("validation failed")

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidationError lists every offending field by its form name.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// CustomerForm is the shipping and contact form submitted at checkout.
type CustomerForm models.Customer

func (f CustomerForm) Normalize() CustomerForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Surname = strings.TrimSpace(f.Surname)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
	f.City = strings.TrimSpace(f.City)
	f.PostalCode = strings.TrimSpace(f.PostalCode)
	f.Province = strings.TrimSpace(f.Province)
	f.Notes = strings.TrimSpace(f.Notes)
	return f
}

// Validate returns nil or a *ValidationError naming every missing or malformed field.
func (f CustomerForm) Validate() error {
	f = f.Normalize()
	fields := map[string]string{}
	required := []struct {
		name, value string
	}{
		{"nome", f.Name},
		{"email", f.Email},
		{"telefono", f.Phone},
		{"indirizzo", f.Address},
		{"citta", f.City},
		{"cap", f.PostalCode},
		{"provincia", f.Province},
	}
	for _, r := range required {
		if r.value == "" {
			fields[r.name] = "required"
		}
	}
	if f.Email != "" && !emailPattern.MatchString(f.Email) {
		fields["email"] = "invalid email"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (f CustomerForm) Customer() models.Customer {
	return models.Customer(f.Normalize())
}
