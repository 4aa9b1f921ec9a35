package category

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/alama/core"
)

// SystemOwnerID owns the built-in categories every account can weight
// ("Tasks", "Exams", ...). It is a reserved id no real account can claim.
const SystemOwnerID = "00000000-0000-0000-0000-000000000000"

type Category struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (c Category) IsSystem() bool { return c.OwnerID == SystemOwnerID }

// VisibleTo reports whether ownerID may reference this category when
// weighting a course or filing graded work under it.
func (c Category) VisibleTo(ownerID string) bool {
	return c.OwnerID == ownerID || c.IsSystem()
}

type NewCategory struct {
	Name string `json:"name" validate:"required,alphanum_"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name) // names are case-sensitive; no lowering
	return validate.Struct(nc)
}
