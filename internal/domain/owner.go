package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// OwnerKind tells which party an obligation or payment belongs to
type OwnerKind string

const (
	OwnerStudent     OwnerKind = "student"
	OwnerApplication OwnerKind = "application"
)

// Valid reports whether k is a known owner kind
func (k OwnerKind) Valid() bool {
	return k == OwnerStudent || k == OwnerApplication
}

// ParseOwnerKind converts a path or payload value into an OwnerKind
func ParseOwnerKind(s string) (OwnerKind, error) {
	k := OwnerKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown owner kind %q", s)
	}
	return k, nil
}

// Owner is either a student or an application, never both.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

func StudentOwner(id uuid.UUID) Owner {
	return Owner{Kind: OwnerStudent, ID: id}
}

func ApplicationOwner(id uuid.UUID) Owner {
	return Owner{Kind: OwnerApplication, ID: id}
}

func (o Owner) IsZero() bool {
	return o.Kind == "" && o.ID == uuid.Nil
}

// Valid reports whether the owner has a known kind and a non-nil id
func (o Owner) Valid() bool {
	return o.Kind.Valid() && o.ID != uuid.Nil
}

func (o Owner) String() string {
	return fmt.Sprintf("%s:%s", o.Kind, o.ID)
}
