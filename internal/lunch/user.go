package lunch

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/mensaclub/mensa/internal/access"
)

// User is a member of the organization. Role decides which access levels
// the HTTP layer lets the user through.
type User struct {
	ID        uuid.UUID   `json:"id" bson:"_id"`
	Username  string      `json:"username" bson:"username"`
	Name      string      `json:"name" bson:"name"`
	Email     string      `json:"email" bson:"email"`
	Role      access.Role `json:"role" bson:"role"`
	Enabled   bool        `json:"enabled" bson:"enabled"`
	Deleted   bool        `json:"deleted" bson:"deleted"`
	CreatedAt time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" bson:"updated_at"`
}

func NewUser() *User {
	return &User{
		ID:      uuid.New(),
		Role:    access.RoleUser,
		Enabled: true,
	}
}

func (u *User) GetID() uuid.UUID {
	return u.ID
}

func (u *User) SetID(id uuid.UUID) {
	u.ID = id
}

func (u *User) ResourceType() string {
	return "user"
}

func (u *User) EnsureID() {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
}

func (u *User) BeforeCreate() {
	u.EnsureID()
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.Name = strings.TrimSpace(u.Name)
}

func (u *User) BeforeUpdate() {
	u.UpdatedAt = time.Now()
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	u.Name = strings.TrimSpace(u.Name)
}

// IsAdmin reports whether the user clears the admin level. Admins may set
// identity/audit fields and order on behalf of other members.
func (u *User) IsAdmin() bool {
	return u != nil && (u.Role.Is(access.RoleAdmin) || u.Role.Is(access.RoleRoot))
}

func (u *User) MarshalBSON() ([]byte, error) {
	return bson.Marshal(bson.M{
		"_id":        u.ID.String(),
		"username":   u.Username,
		"name":       u.Name,
		"email":      u.Email,
		"role":       u.Role.Title(),
		"enabled":    u.Enabled,
		"deleted":    u.Deleted,
		"created_at": u.CreatedAt,
		"updated_at": u.UpdatedAt,
	})
}

func (u *User) UnmarshalBSON(data []byte) error {
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return err
	}

	u.ID = asUUID(doc["_id"])
	u.Username = asString(doc["username"])
	u.Name = asString(doc["name"])
	u.Email = asString(doc["email"])
	u.Enabled = asBool(doc["enabled"])
	u.Deleted = asBool(doc["deleted"])
	u.CreatedAt = asTime(doc["created_at"])
	u.UpdatedAt = asTime(doc["updated_at"])

	u.Role = access.RolePublic
	if role, ok := access.ParseRole(asString(doc["role"])); ok {
		u.Role = role
	}
	return nil
}
