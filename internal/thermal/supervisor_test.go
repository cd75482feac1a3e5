package thermal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSensors struct {
	temps []float32
	i     int
}

func (f *fakeSensors) ReadGPUEdgeTempC() (float32, error) {
	t := f.temps[f.i]
	if f.i < len(f.temps)-1 {
		f.i++
	}
	return t, nil
}

func (f *fakeSensors) ReadCPUPackageTempC() (float32, bool, error) { return 0, false, nil }

type fakeFan struct {
	manual   bool
	percent  uint8
	restored bool
}

func (f *fakeFan) EnsureManual() error    { f.manual = true; return nil }
func (f *fakeFan) SetPercent(p uint8) error { f.percent = p; return nil }
func (f *fakeFan) Restore() error          { f.restored = true; return nil }

func TestSupervisor_EmergencySequence(t *testing.T) {
	sensors := &fakeSensors{temps: []float32{84, 86, 96}}
	fan := &fakeFan{}
	curve := NewFanCurve(nil)
	flag := &EmergencyFlag{}
	sup := NewSupervisor(sensors, fan, curve, Config{
		MaxSafeTempC: 85, EmergencyTempC: 95, HysteresisC: 5, FanEnabled: true,
	}, flag)

	sup.Tick(context.Background()) // 84C: below emergency and below maxSafe
	assert.False(t, sup.State().InEmergency)

	sup.Tick(context.Background()) // 86C: above maxSafe but below emergency; no latch rule for this alone
	assert.False(t, sup.State().InEmergency)

	sup.Tick(context.Background()) // 96C: emergency
	require.True(t, sup.State().InEmergency)
	assert.EqualValues(t, 100, sup.State().LastFanPercent)
	assert.True(t, flag.Get())
}

func TestSupervisor_EmergencyClearsOnlyBelowHysteresis(t *testing.T) {
	sensors := &fakeSensors{temps: []float32{96, 82, 79}}
	fan := &fakeFan{}
	curve := NewFanCurve(nil)
	flag := &EmergencyFlag{}
	sup := NewSupervisor(sensors, fan, curve, Config{
		MaxSafeTempC: 85, EmergencyTempC: 95, HysteresisC: 5, FanEnabled: true,
	}, flag)

	sup.Tick(context.Background()) // 96: enters emergency
	require.True(t, sup.State().InEmergency)

	sup.Tick(context.Background()) // 82: still >= 80 (85-5), stays latched
	assert.True(t, sup.State().InEmergency)

	sup.Tick(context.Background()) // 79: < 80, clears
	assert.False(t, sup.State().InEmergency)
	assert.False(t, flag.Get())
}

func TestSupervisor_NeverClearsAboveMaxSafe(t *testing.T) {
	sensors := &fakeSensors{temps: []float32{96, 90}}
	fan := &fakeFan{}
	curve := NewFanCurve(nil)
	flag := &EmergencyFlag{}
	sup := NewSupervisor(sensors, fan, curve, Config{
		MaxSafeTempC: 85, EmergencyTempC: 95, HysteresisC: 5, FanEnabled: true,
	}, flag)

	sup.Tick(context.Background())
	sup.Tick(context.Background()) // 90 >= maxSafe(85), must never clear
	assert.True(t, sup.State().InEmergency)
}

func TestSupervisor_ShutdownRestoresFan(t *testing.T) {
	sensors := &fakeSensors{temps: []float32{40}}
	fan := &fakeFan{}
	curve := NewFanCurve(nil)
	sup := NewSupervisor(sensors, fan, curve, Config{
		MaxSafeTempC: 85, EmergencyTempC: 95, HysteresisC: 5, FanEnabled: true,
	}, &EmergencyFlag{})

	require.NoError(t, sup.Shutdown())
	assert.True(t, fan.restored)
}
