package model

import (
	"errors"
	"fmt"
)

// ErrInvalidPayload возвращается, если поля запроса невозможно разобрать.
var ErrInvalidPayload = errors.New("invalid payload")

// Payload описывает тело запроса на создание и изменение договора.
type Payload struct {
	Category                *string    `json:"category"`
	ContractDate            string     `json:"contractDate,omitempty"`
	ContractStartDate       string     `json:"contractStartDate,omitempty"`
	ContractEndDate         string     `json:"contractEndDate,omitempty"`
	ExpectedContractEndDate string     `json:"expectedContractEndDate,omitempty"`
	Deposit                 *int64     `json:"deposit,omitempty"`
	MonthlyRent             *int64     `json:"monthlyRent,omitempty"`
	Price                   *int64     `json:"price,omitempty"`
	LessorOrSellerUIDs      []int64    `json:"lessorOrSellerUids"`
	LesseeOrBuyerUIDs       []int64    `json:"lesseeOrBuyerUids"`
	PropertyUID             int64      `json:"propertyUid"`
	Status                  string     `json:"status"`
	ExistingDocuments       []Document `json:"existingDocuments,omitempty"`
}

// PayloadFromDraft строит тело запроса из редакции договора.
func PayloadFromDraft(d Draft) Payload {
	p := Payload{
		ContractDate:            FormatDate(d.contractDate),
		ContractStartDate:       FormatDate(d.contractStartDate),
		ContractEndDate:         FormatDate(d.contractEndDate),
		ExpectedContractEndDate: FormatDate(d.expectedContractEndDate),
		Deposit:                 cloneInt(d.deposit),
		MonthlyRent:             cloneInt(d.monthlyRent),
		Price:                   cloneInt(d.price),
		LessorOrSellerUIDs:      partyIDs(d.lessors),
		LesseeOrBuyerUIDs:       partyIDs(d.lessees),
		PropertyUID:             d.propertyID,
		Status:                  string(d.status),
	}
	if d.category != nil {
		c := string(*d.category)
		p.Category = &c
	}
	return p
}

// Draft разбирает тело запроса в редакцию договора. Имена участников
// не передаются в запросе и остаются пустыми.
func (p Payload) Draft() (Draft, error) {
	d := Draft{
		status:      Status(p.Status),
		propertyID:  p.PropertyUID,
		deposit:     cloneInt(p.Deposit),
		monthlyRent: cloneInt(p.MonthlyRent),
		price:       cloneInt(p.Price),
		lessors:     partiesFromIDs(p.LessorOrSellerUIDs),
		lessees:     partiesFromIDs(p.LesseeOrBuyerUIDs),
		documents:   append([]Document(nil), p.ExistingDocuments...),
	}

	if p.Category != nil && *p.Category != "" {
		c := Category(*p.Category)
		if !c.Valid() {
			return Draft{}, fmt.Errorf("%w: unknown category %q", ErrInvalidPayload, *p.Category)
		}
		d.category = &c
	}

	var err error
	if d.contractDate, err = ParseDate(p.ContractDate); err != nil {
		return Draft{}, fmt.Errorf("%w: contractDate: %v", ErrInvalidPayload, err)
	}
	if d.contractStartDate, err = ParseDate(p.ContractStartDate); err != nil {
		return Draft{}, fmt.Errorf("%w: contractStartDate: %v", ErrInvalidPayload, err)
	}
	if d.contractEndDate, err = ParseDate(p.ContractEndDate); err != nil {
		return Draft{}, fmt.Errorf("%w: contractEndDate: %v", ErrInvalidPayload, err)
	}
	if d.expectedContractEndDate, err = ParseDate(p.ExpectedContractEndDate); err != nil {
		return Draft{}, fmt.Errorf("%w: expectedContractEndDate: %v", ErrInvalidPayload, err)
	}

	return d, nil
}

func partyIDs(parties []Party) []int64 {
	ids := make([]int64, 0, len(parties))
	for _, p := range parties {
		ids = append(ids, p.CustomerID)
	}
	return ids
}

// partiesFromIDs строит сторону сделки; повторы одного клиента схлопываются.
func partiesFromIDs(ids []int64) []Party {
	parties := make([]Party, 0, len(ids))
	for _, id := range ids {
		parties = append(parties, Party{CustomerID: id})
	}
	return uniqueParties(parties)
}
