package testdata

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/jordanlanch/leadpilot/pkg/models"
)

// NewLead generates a realistic fake lead. Seeding and tests use it to avoid
// hand-maintained fixture lists.
func NewLead() *models.Lead {
	company := gofakeit.Company()
	person := gofakeit.Person()
	domainPart := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(company, " ", ""), ",", ""))

	return &models.Lead{
		Name:    person.FirstName + " " + person.LastName,
		Email:   strings.ToLower(person.FirstName) + "@" + domainPart + ".example.com",
		Company: company,
		Phone:   "+1" + gofakeit.Numerify("212555####"),
		Country: "US",
		Status:  models.LeadStatusNew,
	}
}

// NewLeads generates n distinct fake leads. Email uniqueness is enforced with
// a numeric suffix so batches seed cleanly against the unique index.
func NewLeads(n int) []*models.Lead {
	leads := make([]*models.Lead, 0, n)
	seen := make(map[string]int)
	for i := 0; i < n; i++ {
		l := NewLead()
		if c := seen[l.Email]; c > 0 {
			l.Email = fmt.Sprintf("%d.%s", c, l.Email)
		}
		seen[l.Email]++
		leads = append(leads, l)
	}
	return leads
}

// NewUser generates a fake operator account.
func NewUser() *models.User {
	person := gofakeit.Person()
	return &models.User{
		Name:  person.FirstName + " " + person.LastName,
		Email: strings.ToLower(person.FirstName+"."+person.LastName) + "@leadpilot.example.com",
	}
}
