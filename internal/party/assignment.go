// Package party управляет двумя непересекающимися сторонами сделки.
package party

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/realty-contracts/internal/model"
)

// ErrPartyOverlap возвращается при попытке добавить клиента на обе стороны сделки.
var ErrPartyOverlap = errors.New("customer is already assigned to the opposite side")

// Side обозначает сторону сделки.
type Side int

const (
	// LessorOrSeller обозначает арендодателя или продавца.
	LessorOrSeller Side = iota
	// LesseeOrBuyer обозначает арендатора или покупателя.
	LesseeOrBuyer
)

func (s Side) String() string {
	if s == LessorOrSeller {
		return "lessorOrSeller"
	}
	return "lesseeOrBuyer"
}

func (s Side) opposite() Side {
	if s == LessorOrSeller {
		return LesseeOrBuyer
	}
	return LessorOrSeller
}

// Assignment хранит упорядоченные множества участников обеих сторон.
type Assignment struct {
	sides [2][]model.Party
}

// NewAssignment создаёт распределение из готовых списков без проверки пересечений.
// Повторы внутри одной стороны схлопываются.
func NewAssignment(lessors, lessees []model.Party) *Assignment {
	a := &Assignment{}
	for _, p := range lessors {
		if !a.contains(LessorOrSeller, p.CustomerID) {
			a.sides[LessorOrSeller] = append(a.sides[LessorOrSeller], p)
		}
	}
	for _, p := range lessees {
		if !a.contains(LesseeOrBuyer, p.CustomerID) {
			a.sides[LesseeOrBuyer] = append(a.sides[LesseeOrBuyer], p)
		}
	}
	return a
}

// Assign добавляет участника на сторону side. Если участник уже на противоположной
// стороне, возвращается ErrPartyOverlap и ни одна сторона не меняется.
func (a *Assignment) Assign(side Side, p model.Party) error {
	if a.contains(side.opposite(), p.CustomerID) {
		return fmt.Errorf("%w: customer %d", ErrPartyOverlap, p.CustomerID)
	}
	if a.contains(side, p.CustomerID) {
		return nil
	}
	a.sides[side] = append(a.sides[side], p)
	return nil
}

// Unassign убирает участника со стороны side, если он там есть.
func (a *Assignment) Unassign(side Side, customerID int64) {
	list := a.sides[side]
	for i, p := range list {
		if p.CustomerID == customerID {
			a.sides[side] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// HasOverlap сообщает, есть ли клиенты, назначенные на обе стороны.
func (a *Assignment) HasOverlap() bool {
	return len(a.Overlapping()) > 0
}

// Overlapping возвращает идентификаторы клиентов, присутствующих на обеих сторонах.
func (a *Assignment) Overlapping() []int64 {
	var ids []int64
	for _, p := range a.sides[LessorOrSeller] {
		if a.contains(LesseeOrBuyer, p.CustomerID) {
			ids = append(ids, p.CustomerID)
		}
	}
	return ids
}

// Empty сообщает, пуста ли сторона side.
func (a *Assignment) Empty(side Side) bool {
	return len(a.sides[side]) == 0
}

// Lessors возвращает копию стороны арендодателя/продавца.
func (a *Assignment) Lessors() []model.Party {
	return append([]model.Party(nil), a.sides[LessorOrSeller]...)
}

// Lessees возвращает копию стороны арендатора/покупателя.
func (a *Assignment) Lessees() []model.Party {
	return append([]model.Party(nil), a.sides[LesseeOrBuyer]...)
}

// Apply переносит стороны в редакцию договора.
func (a *Assignment) Apply(d model.Draft) model.Draft {
	return d.WithParties(a.sides[LessorOrSeller], a.sides[LesseeOrBuyer])
}

func (a *Assignment) contains(side Side, customerID int64) bool {
	for _, p := range a.sides[side] {
		if p.CustomerID == customerID {
			return true
		}
	}
	return false
}
