package domain

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type NotificationPreferences struct {
	SMS   bool `json:"smsNotifications"`
	Email bool `json:"emailNotifications"`
}

type User struct {
	ID                string                  `json:"id"`
	FirstName         string                  `json:"firstName"`
	LastName          string                  `json:"lastName"`
	Email             string                  `json:"email"`
	Phone             string                  `json:"phone"`
	Role              Role                    `json:"role"`
	PreferredLanguage string                  `json:"preferredLanguage"` // en | ar
	Preferences       NotificationPreferences `json:"preferences"`
	IsActive          bool                    `json:"isActive"`
	CreatedAt         time.Time               `json:"createdAt"`
}

func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type Address struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Label     string `json:"label"`
	FullName  string `json:"fullName"`
	Mobile    string `json:"mobile"`
	Emirate   string `json:"emirate"`
	Area      string `json:"area"`
	Street    string `json:"street"`
	Building  string `json:"building"`
	Floor     string `json:"floor,omitempty"`
	Apartment string `json:"apartment,omitempty"`
	Landmark  string `json:"landmark,omitempty"`
	IsDefault bool   `json:"isDefault"`
}

// AddressSnapshot is the delivery address denormalized onto an order.
type AddressSnapshot struct {
	FullName  string `json:"fullName"`
	Mobile    string `json:"mobile"`
	Emirate   string `json:"emirate"`
	Area      string `json:"area"`
	Street    string `json:"street"`
	Building  string `json:"building"`
	Floor     string `json:"floor,omitempty"`
	Apartment string `json:"apartment,omitempty"`
	Landmark  string `json:"landmark,omitempty"`
}

func (a Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		FullName:  a.FullName,
		Mobile:    a.Mobile,
		Emirate:   a.Emirate,
		Area:      a.Area,
		Street:    a.Street,
		Building:  a.Building,
		Floor:     a.Floor,
		Apartment: a.Apartment,
		Landmark:  a.Landmark,
	}
}
