package form

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	s := filledSession(t)
	id := s.Order.Services[0].ID
	require.NoError(t, s.SetGuaranteeType(id, "2 سنوات"))
	require.NoError(t, s.SetGuaranteeStart(id, "2024-01-01"))

	v := Validate(s.Record())
	assert.True(t, v.Empty(), "unexpected violations: %v", v)
}

func TestValidate_Violations(t *testing.T) {
	s := filledSession(t)
	s.Client.Phone = "12345"
	s.Client.ClientType = "company"
	s.Client.Email = "not-an-email"
	s.SetPlateCell(3, "")

	second := s.AddService()
	require.NoError(t, s.SetServiceType(second.ID, Protection))
	require.NoError(t, s.SetServiceField(second.ID, FieldProtectionFinish, "glossy"))
	require.NoError(t, s.SetGuaranteeType(second.ID, "1 سنة"))
	neg := decimal.NewFromInt(-5)
	s.Order.Services[1].ServicePrice = &neg

	v := Validate(s.Record())
	assert.Equal(t, "len", v["client.phone"])
	assert.Equal(t, "required_if", v["client.companyName"])
	assert.Equal(t, "email", v["client.email"])
	assert.Equal(t, "plate", v["client.carSummary.carPlateNumber"])
	assert.Equal(t, "required", v["order.services[1].protectionSize"])
	assert.Equal(t, "required", v["order.services[1].protectionCoverage"])
	assert.Equal(t, "required_with", v["order.services[1].guarantee.startDate"])
	assert.Equal(t, "min", v["order.services[1].servicePrice"])
	assert.NotContains(t, v, "order.services[0].polishSubType")
}

func TestValidate_GuaranteeDates(t *testing.T) {
	s := filledSession(t)
	s.Order.Services[0].Guarantee = &GuaranteeRecord{
		ID:            "guarantee-1",
		TypeGuarantee: "1 سنة",
		StartDate:     "2024-05-01",
		EndDate:       "2024-04-30",
	}
	v := Validate(s.Record())
	assert.Equal(t, "gtefield", v["order.services[0].guarantee.endDate"])

	s.Order.Services[0].Guarantee.EndDate = "30-04-2025"
	v = Validate(s.Record())
	assert.Equal(t, "datetime", v["order.services[0].guarantee.endDate"])
}

func TestValidate_UnknownOption(t *testing.T) {
	s := filledSession(t)
	id := s.Order.Services[0].ID
	require.NoError(t, s.SetServiceField(id, FieldPolishType, "laser"))
	v := Validate(s.Record())
	assert.Equal(t, "oneof", v["order.services[0].polishType"])
}

func TestValidate_EmptyServices(t *testing.T) {
	rec := filledSession(t).Record()
	rec.Order.Services = nil
	v := Validate(rec)
	assert.Equal(t, "min", v["order.services"])
}
