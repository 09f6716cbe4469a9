package domain

import "github.com/shopspring/decimal"

// MoneyScale знаков после запятой у денежных сумм; совпадает с NUMERIC(12,2)
const MoneyScale = 2

var maxMoney = decimal.New(1, 10)

func init() {
	// amounts go over the wire and into stored documents as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// IsMoney сумма хранится в NUMERIC(12,2) без округления и переполнения
func IsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale)) && d.Abs().LessThan(maxMoney)
}
