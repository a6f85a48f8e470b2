// Package validation содержит функции валидации входных данных.
package validation

import (
	"fmt"

	"github.com/mmeshcher/realty-contracts/internal/model"
	"github.com/mmeshcher/realty-contracts/internal/party"
)

// Validate проверяет редакцию договора и возвращает все найденные нарушения
// в порядке приоритета. Пустой результат означает, что договор можно сохранить.
func Validate(d model.Draft) []model.Violation {
	var out []model.Violation
	out = append(out, checkDates(d)...)
	out = append(out, checkParties(d)...)

	if d.PropertyID() <= 0 {
		out = append(out, model.Violation{
			Code:    model.ViolationPropertyRequired,
			Field:   "propertyUid",
			Message: "매물을 선택해 주세요.",
		})
	}

	if !d.Status().Valid() {
		out = append(out, model.Violation{
			Code:    model.ViolationStatusRequired,
			Field:   "status",
			Message: "계약 상태를 선택해 주세요.",
		})
	}

	out = append(out, checkAmounts(d)...)
	return out
}

func checkDates(d model.Draft) []model.Violation {
	var out []model.Violation
	signed, start, end := d.ContractDate(), d.ContractStartDate(), d.ContractEndDate()

	if signed != nil && start != nil && signed.After(*start) {
		out = append(out, model.Violation{
			Code:    model.ViolationDateOrder,
			Field:   "contractDate",
			Message: "계약일은 계약 시작일보다 늦을 수 없습니다.",
		})
	}
	if start != nil && end != nil && !start.Before(*end) {
		out = append(out, model.Violation{
			Code:    model.ViolationDateOrder,
			Field:   "contractEndDate",
			Message: "계약 종료일은 계약 시작일보다 늦어야 합니다.",
		})
	}
	return out
}

func checkParties(d model.Draft) []model.Violation {
	var out []model.Violation
	a := party.NewAssignment(d.Lessors(), d.Lessees())

	if a.Empty(party.LessorOrSeller) {
		out = append(out, model.Violation{
			Code:    model.ViolationPartyEmpty,
			Field:   "lessorOrSellerUids",
			Message: "임대인/매도인을 한 명 이상 지정해 주세요.",
		})
	}
	if a.Empty(party.LesseeOrBuyer) {
		out = append(out, model.Violation{
			Code:    model.ViolationPartyEmpty,
			Field:   "lesseeOrBuyerUids",
			Message: "임차인/매수인을 한 명 이상 지정해 주세요.",
		})
	}
	if a.HasOverlap() {
		out = append(out, model.Violation{
			Code:    model.ViolationPartyOverlap,
			Field:   "lesseeOrBuyerUids",
			Message: fmt.Sprintf("같은 고객이 양쪽 당사자로 지정되었습니다: %v", a.Overlapping()),
		})
	}
	return out
}

func checkAmounts(d model.Draft) []model.Violation {
	type amount struct {
		field string
		value *int64
	}

	var fields []amount
	category := d.Category()
	switch {
	case category == nil:
		fields = []amount{{"deposit", d.Deposit()}, {"monthlyRent", d.MonthlyRent()}, {"price", d.Price()}}
	case *category == model.CategorySale:
		fields = []amount{{"price", d.Price()}}
	case *category == model.CategoryDeposit:
		fields = []amount{{"deposit", d.Deposit()}}
	case *category == model.CategoryMonthly:
		fields = []amount{{"deposit", d.Deposit()}, {"monthlyRent", d.MonthlyRent()}}
	}

	var out []model.Violation
	for _, f := range fields {
		if f.value != nil && *f.value < 0 {
			out = append(out, model.Violation{
				Code:    model.ViolationAmountNegative,
				Field:   f.field,
				Message: "금액은 0 이상이어야 합니다.",
			})
		}
	}
	return out
}

// HasCode сообщает, содержит ли список нарушение с указанным кодом.
func HasCode(violations []model.Violation, code string) bool {
	for _, v := range violations {
		if v.Code == code {
			return true
		}
	}
	return false
}
