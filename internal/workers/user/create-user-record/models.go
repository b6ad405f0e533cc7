// internal/workers/user/create-user-record/models.go
package createuserrecord

type Input struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	Phone     string `json:"phone,omitempty"`
}

type Output struct {
	UserID    string `json:"userId"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}
