package models

import "time"

// Subscription is a (subscriber, company) tuple, unique. The core never
// reads subscriber identity directly — only the aggregated count per company.
type Subscription struct {
	CompanyID int64     `json:"company_id"`
	Subscriber string   `json:"subscriber"`
	CreatedAt time.Time `json:"created_at"`
}
