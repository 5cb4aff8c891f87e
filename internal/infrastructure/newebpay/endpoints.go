package newebpay

const (
	TestBaseURL       = "https://ccore.newebpay.com"
	ProductionBaseURL = "https://core.newebpay.com"

	pathMPG         = "/MPG/mpg_gateway"
	pathPeriod      = "/MPG/period"
	pathAlterStatus = "/MPG/period/AlterStatus"
	pathQueryTrade  = "/API/QueryTradeInfo"
)

type Endpoints struct {
	base string
}

func NewEndpoints(production bool) Endpoints {
	if production {
		return Endpoints{base: ProductionBaseURL}
	}
	return Endpoints{base: TestBaseURL}
}

// EndpointsAt points every operation at an arbitrary base URL.
func EndpointsAt(base string) Endpoints {
	return Endpoints{base: base}
}

func (e Endpoints) For(kind Kind) string {
	if kind == KindPeriod {
		return e.base + pathPeriod
	}
	return e.base + pathMPG
}

func (e Endpoints) AlterStatus() string {
	return e.base + pathAlterStatus
}

func (e Endpoints) QueryTradeInfo() string {
	return e.base + pathQueryTrade
}
