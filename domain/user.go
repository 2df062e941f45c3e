package domain

// Group is the role a user belongs to.
type Group struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Description *string `json:"description,omitempty" db:"description"`
}

type User struct {
	ID        int64  `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Email     string `json:"email" db:"email"`
	Password  string `json:"-" db:"password_hash"`
	GroupID   int64  `json:"group_id" db:"group_id"`
	CreatedAt string `json:"created_at,omitempty" db:"created_at"`
}
