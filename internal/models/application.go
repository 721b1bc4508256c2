package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type RecordID int64

func (id RecordID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func ParseRecordID(s string) (RecordID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid application id %q", s)
	}
	return RecordID(n), nil
}

type Status string

const (
	StatusApplied   Status = "APPLIED"
	StatusInterview Status = "INTERVIEW"
	StatusOffer     Status = "OFFER"
	StatusRejected  Status = "REJECTED"
)

func Statuses() []Status {
	return []Status{StatusApplied, StatusInterview, StatusOffer, StatusRejected}
}

func (s Status) Valid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus accepts any letter case. An empty string parses to the unset
// status, which means "all statuses" in a ViewQuery.
func ParseStatus(s string) (Status, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	status := Status(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return status, nil
}

const dateLayout = "2006-01-02"

// Date is a calendar date without time of day, encoded as "2006-01-02".
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ApplicationRecord is the client's copy of a server-held application.
// CreatedAt and UpdatedAt are kept in the server's own format.
type ApplicationRecord struct {
	ID          RecordID `json:"id"`
	Company     string   `json:"company"`
	Role        string   `json:"role"`
	Status      Status   `json:"status"`
	DateApplied Date     `json:"dateApplied"`
	Notes       string   `json:"notes,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
	UserID      int64    `json:"userId,omitempty"`
	Username    string   `json:"username,omitempty"`
}

// Input returns the editable part of the record, the starting point of an
// edit form.
func (r ApplicationRecord) Input() ApplicationInput {
	return ApplicationInput{
		Company:     r.Company,
		Role:        r.Role,
		Status:      r.Status,
		DateApplied: r.DateApplied,
		Notes:       r.Notes,
	}
}

// ApplicationInput is the request body of create and update.
type ApplicationInput struct {
	Company     string `json:"company"`
	Role        string `json:"role"`
	Status      Status `json:"status"`
	DateApplied Date   `json:"dateApplied"`
	Notes       string `json:"notes"`
}

// NewApplicationInput returns the defaults of a fresh entry form.
func NewApplicationInput() ApplicationInput {
	return ApplicationInput{
		Status:      StatusApplied,
		DateApplied: Today(),
	}
}

type ListPage struct {
	Content       []ApplicationRecord `json:"content"`
	TotalPages    int                 `json:"totalPages"`
	TotalElements int64               `json:"totalElements"`
	Number        int                 `json:"number"`
	Size          int                 `json:"size"`
}

type StatisticsSnapshot struct {
	Total     int64 `json:"total"`
	Applied   int64 `json:"applied"`
	Interview int64 `json:"interview"`
	Offer     int64 `json:"offer"`
	Rejected  int64 `json:"rejected"`
}

func (s StatisticsSnapshot) Count(status Status) int64 {
	switch status {
	case StatusApplied:
		return s.Applied
	case StatusInterview:
		return s.Interview
	case StatusOffer:
		return s.Offer
	case StatusRejected:
		return s.Rejected
	default:
		return s.Total
	}
}
