package newebpay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEndpoints(t *testing.T) {
	test := NewEndpoints(false)
	prod := NewEndpoints(true)

	assert.Equal(t, "https://ccore.newebpay.com/MPG/mpg_gateway", test.For(KindMPG))
	assert.Equal(t, "https://ccore.newebpay.com/MPG/period", test.For(KindPeriod))
	assert.Equal(t, "https://core.newebpay.com/MPG/mpg_gateway", prod.For(KindMPG))
	assert.Equal(t, "https://core.newebpay.com/MPG/period/AlterStatus", prod.AlterStatus())
	assert.Equal(t, "https://core.newebpay.com/API/QueryTradeInfo", prod.QueryTradeInfo())
}
