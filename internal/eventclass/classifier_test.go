package eventclass

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Approved(t *testing.T) {
	c := Classify(EventPurchaseApproved)

	assert.True(t, c.Known)
	assert.Equal(t, "approved", c.Status)
	assert.Equal(t, TypePurchase, c.Type)
	assert.Equal(t, PolarityCredit, c.Polarity)
	assert.True(t, c.Financial)
}

func TestClassify_Refunded(t *testing.T) {
	c := Classify(EventPurchaseRefunded)

	assert.Equal(t, TypeRefund, c.Type)
	assert.Equal(t, PolarityDebit, c.Polarity)
	assert.True(t, c.Financial)
}

func TestClassify_Chargeback(t *testing.T) {
	c := Classify(EventPurchaseChargeback)

	assert.Equal(t, TypeChargeback, c.Type)
	assert.Equal(t, PolarityDebit, c.Polarity)
	assert.True(t, c.Financial)
}

func TestClassify_NonFinancialKnownEvent(t *testing.T) {
	c := Classify(EventPurchaseBilletPrinted)

	assert.True(t, c.Known)
	assert.Equal(t, TypeAttempt, c.Type)
	assert.Equal(t, PolarityNone, c.Polarity)
	assert.False(t, c.Financial)
}

func TestClassify_UnknownEventIsAcceptedWithoutSideEffects(t *testing.T) {
	c := Classify("SOME_FUTURE_EVENT")

	assert.False(t, c.Known)
	assert.False(t, c.Financial)
	assert.Equal(t, PolarityNone, c.Polarity)
	assert.Equal(t, TypeAttempt, c.Type)
}

func TestIsDebit(t *testing.T) {
	assert.True(t, IsDebit(EventPurchaseRefunded))
	assert.True(t, IsDebit(EventPurchaseCanceled))
	assert.True(t, IsDebit(EventPurchaseChargeback))
	assert.False(t, IsDebit(EventPurchaseApproved))
}
