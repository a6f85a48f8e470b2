package model

import "time"

// Draft описывает несохранённую редакцию договора. Значение неизменяемо:
// каждый метод With* возвращает новую копию, не затрагивая исходную.
type Draft struct {
	category                *Category
	status                  Status
	contractDate            *time.Time
	contractStartDate       *time.Time
	contractEndDate         *time.Time
	expectedContractEndDate *time.Time
	propertyID              int64
	propertyAddress         string
	deposit                 *int64
	monthlyRent             *int64
	price                   *int64
	lessors                 []Party
	lessees                 []Party
	documents               []Document
}

// NewDraft создаёт пустую редакцию со статусом по умолчанию.
func NewDraft() Draft {
	return Draft{status: DefaultStatus}
}

// DraftFromContract создаёт редакцию из сохранённого договора.
func DraftFromContract(c Contract) Draft {
	c = c.Clone()
	deposit, rent, price := c.Deposit, c.MonthlyRent, c.Price
	return Draft{
		category:                c.Category,
		status:                  c.Status,
		contractDate:            c.ContractDate,
		contractStartDate:       c.ContractStartDate,
		contractEndDate:         c.ContractEndDate,
		expectedContractEndDate: c.ExpectedContractEndDate,
		propertyID:              c.PropertyID,
		propertyAddress:         c.PropertyAddress,
		deposit:                 &deposit,
		monthlyRent:             &rent,
		price:                   &price,
		lessors:                 c.LessorOrSellerParties,
		lessees:                 c.LesseeOrBuyerParties,
		documents:               c.Documents,
	}
}

func (d Draft) clone() Draft {
	out := d
	out.category = cloneCategory(d.category)
	out.contractDate = cloneTime(d.contractDate)
	out.contractStartDate = cloneTime(d.contractStartDate)
	out.contractEndDate = cloneTime(d.contractEndDate)
	out.expectedContractEndDate = cloneTime(d.expectedContractEndDate)
	out.deposit = cloneInt(d.deposit)
	out.monthlyRent = cloneInt(d.monthlyRent)
	out.price = cloneInt(d.price)
	out.lessors = append([]Party(nil), d.lessors...)
	out.lessees = append([]Party(nil), d.lessees...)
	out.documents = append([]Document(nil), d.documents...)
	return out
}

// WithCategory задаёт категорию сделки.
func (d Draft) WithCategory(c Category) Draft {
	out := d.clone()
	out.category = &c
	return out
}

// WithoutCategory сбрасывает категорию.
func (d Draft) WithoutCategory() Draft {
	out := d.clone()
	out.category = nil
	return out
}

// WithStatus задаёт статус.
func (d Draft) WithStatus(s Status) Draft {
	out := d.clone()
	out.status = s
	return out
}

// WithContractDate задаёт дату заключения договора, nil очищает поле.
func (d Draft) WithContractDate(t *time.Time) Draft {
	out := d.clone()
	out.contractDate = cloneTime(t)
	return out
}

// WithContractStartDate задаёт дату начала действия договора.
func (d Draft) WithContractStartDate(t *time.Time) Draft {
	out := d.clone()
	out.contractStartDate = cloneTime(t)
	return out
}

// WithContractEndDate задаёт дату окончания договора.
func (d Draft) WithContractEndDate(t *time.Time) Draft {
	out := d.clone()
	out.contractEndDate = cloneTime(t)
	return out
}

// WithExpectedContractEndDate задаёт ожидаемую дату окончания для отменённого договора.
func (d Draft) WithExpectedContractEndDate(t *time.Time) Draft {
	out := d.clone()
	out.expectedContractEndDate = cloneTime(t)
	return out
}

// WithProperty задаёт объект недвижимости и копию его адреса.
func (d Draft) WithProperty(id int64, address string) Draft {
	out := d.clone()
	out.propertyID = id
	out.propertyAddress = address
	return out
}

// WithDeposit задаёт сумму залога.
func (d Draft) WithDeposit(v int64) Draft {
	out := d.clone()
	out.deposit = &v
	return out
}

// WithMonthlyRent задаёт ежемесячную плату.
func (d Draft) WithMonthlyRent(v int64) Draft {
	out := d.clone()
	out.monthlyRent = &v
	return out
}

// WithPrice задаёт цену продажи.
func (d Draft) WithPrice(v int64) Draft {
	out := d.clone()
	out.price = &v
	return out
}

// WithParties задаёт обе стороны сделки.
func (d Draft) WithParties(lessors, lessees []Party) Draft {
	out := d.clone()
	out.lessors = uniqueParties(lessors)
	out.lessees = uniqueParties(lessees)
	return out
}

// WithDocuments задаёт список уже сохранённых документов.
func (d Draft) WithDocuments(docs []Document) Draft {
	out := d.clone()
	out.documents = append([]Document(nil), docs...)
	return out
}

// Category возвращает категорию или nil.
func (d Draft) Category() *Category { return cloneCategory(d.category) }

// Status возвращает выбранный статус.
func (d Draft) Status() Status { return d.status }

// ContractDate возвращает дату заключения.
func (d Draft) ContractDate() *time.Time { return cloneTime(d.contractDate) }

// ContractStartDate возвращает дату начала.
func (d Draft) ContractStartDate() *time.Time { return cloneTime(d.contractStartDate) }

// ContractEndDate возвращает дату окончания.
func (d Draft) ContractEndDate() *time.Time { return cloneTime(d.contractEndDate) }

// ExpectedContractEndDate возвращает ожидаемую дату окончания.
func (d Draft) ExpectedContractEndDate() *time.Time { return cloneTime(d.expectedContractEndDate) }

// PropertyID возвращает идентификатор объекта.
func (d Draft) PropertyID() int64 { return d.propertyID }

// PropertyAddress возвращает копию адреса объекта.
func (d Draft) PropertyAddress() string { return d.propertyAddress }

// Deposit возвращает сумму залога или nil, если она не задана.
func (d Draft) Deposit() *int64 { return cloneInt(d.deposit) }

// MonthlyRent возвращает ежемесячную плату или nil.
func (d Draft) MonthlyRent() *int64 { return cloneInt(d.monthlyRent) }

// Price возвращает цену или nil.
func (d Draft) Price() *int64 { return cloneInt(d.price) }

// Lessors возвращает сторону арендодателя/продавца.
func (d Draft) Lessors() []Party { return append([]Party(nil), d.lessors...) }

// Lessees возвращает сторону арендатора/покупателя.
func (d Draft) Lessees() []Party { return append([]Party(nil), d.lessees...) }

// Documents возвращает сохранённые документы.
func (d Draft) Documents() []Document { return append([]Document(nil), d.documents...) }

// Contract собирает договор для сохранения. Незаданные суммы считаются нулём,
// суммы, не относящиеся к выбранной категории, обнуляются.
func (d Draft) Contract() Contract {
	d = d.clone()
	deposit, rent, price := valueOrZero(d.deposit), valueOrZero(d.monthlyRent), valueOrZero(d.price)
	if d.category != nil {
		usesDeposit, usesRent, usesPrice := d.category.Amounts()
		if !usesDeposit {
			deposit = 0
		}
		if !usesRent {
			rent = 0
		}
		if !usesPrice {
			price = 0
		}
	}
	return Contract{
		Category:                d.category,
		Status:                  d.status,
		ContractDate:            d.contractDate,
		ContractStartDate:       d.contractStartDate,
		ContractEndDate:         d.contractEndDate,
		ExpectedContractEndDate: d.expectedContractEndDate,
		PropertyID:              d.propertyID,
		PropertyAddress:         d.propertyAddress,
		Deposit:                 deposit,
		MonthlyRent:             rent,
		Price:                   price,
		LessorOrSellerParties:   d.lessors,
		LesseeOrBuyerParties:    d.lessees,
		Documents:               d.documents,
	}
}

func valueOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// uniqueParties копирует список, оставляя первое вхождение каждого клиента.
func uniqueParties(parties []Party) []Party {
	out := make([]Party, 0, len(parties))
	seen := make(map[int64]struct{}, len(parties))
	for _, p := range parties {
		if _, ok := seen[p.CustomerID]; ok {
			continue
		}
		seen[p.CustomerID] = struct{}{}
		out = append(out, p)
	}
	return out
}
