package users

import "time"

type User struct {
	ID                string     `json:"id"`
	FullName          string     `json:"fullName"`
	EmployeeID        int        `json:"employeeId"`
	CNIC              string     `json:"cnic,omitempty"`
	Email             string     `json:"email"`
	Department        string     `json:"department"`
	Branch            string     `json:"branch"`
	City              string     `json:"city"`
	JoiningDate       *time.Time `json:"joiningDate"`
	Role              string     `json:"role"`
	IsApproved        bool       `json:"isApproved"`
	IsTeamLead        bool       `json:"isTeamLead"`
	EmailVerified     bool       `json:"emailVerified"`
	ProfileImageURL   string     `json:"profileImageUrl,omitempty"`
	SignatureImageURL string     `json:"signatureImageUrl,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// CanLeadTeam reports whether the user may be assigned leave reviews.
func (u User) CanLeadTeam() bool {
	return u.IsTeamLead && u.IsApproved
}

type TeamLead struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

// UpdateInput lists the fields an administrator may change. Nil fields are left untouched.
type UpdateInput struct {
	FullName    *string `json:"fullName"`
	Email       *string `json:"email"`
	Department  *string `json:"department"`
	Branch      *string `json:"branch"`
	City        *string `json:"city"`
	JoiningDate *string `json:"joiningDate"`
	IsApproved  *bool   `json:"isApproved"`
	Role        *string `json:"role"`
}

type Patch struct {
	FullName    *string
	Email       *string
	Department  *string
	Branch      *string
	City        *string
	JoiningDate *time.Time
	IsApproved  *bool
	Role        *string
}

func (p Patch) Empty() bool {
	return p.FullName == nil && p.Email == nil && p.Department == nil && p.Branch == nil &&
		p.City == nil && p.JoiningDate == nil && p.IsApproved == nil && p.Role == nil
}
