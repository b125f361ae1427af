package models

import (
	"fmt"
	"strings"
	"time"
)

// SenderRole says on whose behalf a stakeholder writes.
type SenderRole string

const (
	Supplier SenderRole = "Fornecedor"
	Client   SenderRole = "Cliente"
)

// SenderRoles lists the roles in form order.
var SenderRoles = []SenderRole{Supplier, Client}

// ParseSenderRole accepts either the stored label or the English name.
func ParseSenderRole(s string) (SenderRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fornecedor", "supplier":
		return Supplier, nil
	case "cliente", "client":
		return Client, nil
	}
	return "", fmt.Errorf("unknown sender role %q", s)
}

func (r SenderRole) Valid() bool {
	return r == Supplier || r == Client
}

func (r SenderRole) String() string {
	return string(r)
}

// Feedback is one stakeholder feedback stored under a company.
type Feedback struct {
	ID              string     `json:"id"`
	CompanyID       string     `json:"company_id"`
	SentBy          SenderRole `json:"sent_by"`
	Category        string     `json:"category"`
	Report          string     `json:"report"`
	IsAnonymous     bool       `json:"is_anonymous"`
	CreatedAt       int64      `json:"created_at"`
	Rating          int        `json:"rating"`
	UserID          string     `json:"user_id"`
	SubmissionToken string     `json:"-"`
}

// CreatedTime converts the epoch-millis timestamp.
func (f Feedback) CreatedTime() time.Time {
	return time.UnixMilli(f.CreatedAt)
}

// FeedbackDoc is the stored form of a feedback.
type FeedbackDoc struct {
	ID              string  `firestore:"-"`
	CompanyID       string  `firestore:"-"`
	SentBy          *string `firestore:"sent_by,omitempty"`
	Category        *string `firestore:"category,omitempty"`
	Report          *string `firestore:"report,omitempty"`
	IsAnonymous     *bool   `firestore:"is_anonymous,omitempty"`
	CreatedAt       *int64  `firestore:"created_at,omitempty"`
	Rating          *int64  `firestore:"rating,omitempty"`
	UserID          *string `firestore:"user_id,omitempty"`
	SubmissionToken *string `firestore:"submission_token,omitempty"`
}

func (d FeedbackDoc) Resolve() Feedback {
	return Feedback{
		ID:              d.ID,
		CompanyID:       d.CompanyID,
		SentBy:          SenderRole(stringOr(d.SentBy, "")),
		Category:        stringOr(d.Category, ""),
		Report:          stringOr(d.Report, ""),
		IsAnonymous:     boolOr(d.IsAnonymous, false),
		CreatedAt:       intOr(d.CreatedAt, 0),
		Rating:          int(intOr(d.Rating, 0)),
		UserID:          stringOr(d.UserID, ""),
		SubmissionToken: stringOr(d.SubmissionToken, ""),
	}
}

// Doc converts a feedback into the document written to the store.
func (f Feedback) Doc() FeedbackDoc {
	d := FeedbackDoc{
		ID:          f.ID,
		CompanyID:   f.CompanyID,
		SentBy:      Ptr(string(f.SentBy)),
		Category:    Ptr(f.Category),
		Report:      Ptr(f.Report),
		IsAnonymous: Ptr(f.IsAnonymous),
		CreatedAt:   Ptr(f.CreatedAt),
		Rating:      Ptr(int64(f.Rating)),
		UserID:      Ptr(f.UserID),
	}
	if f.SubmissionToken != "" {
		d.SubmissionToken = Ptr(f.SubmissionToken)
	}
	return d
}
