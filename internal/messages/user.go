package messages

// OTPRequest is broadcast on the user.request fanout exchange; every
// bound queue receives a copy.
type OTPRequest struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	PhoneNo   string `json:"phoneNo"`
	EmailOTP  int    `json:"emailOTP"`
	SMSOTP    int    `json:"smsOTP"`
}

// UserDetailsRequest is the body of a user-details RPC.
type UserDetailsRequest struct {
	UserID string `json:"userId"`
}

type Address struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
	IsDefault  bool   `json:"isDefault"`
}

type UserDetails struct {
	UserID    string    `json:"userId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	PhoneNo   string    `json:"phoneNo"`
	Addresses []Address `json:"addresses"`
}
