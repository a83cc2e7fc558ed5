package auth

import "context"

// Method is the credential an identity must present on login.
type Method string

const (
	MethodPassword Method = "password"
	MethodOTP      Method = "otp"
)

// DeviceRegistry answers whether a device is trusted for a phone number.
type DeviceRegistry interface {
	DeviceTrusted(ctx context.Context, deviceID, phone string) (bool, error)
}

// DecisionEngine picks the required credential method per identity and
// presenting device. It has no side effects; callers must have resolved the
// identity beforehand.
type DecisionEngine struct {
	devices DeviceRegistry
}

// NewDecisionEngine builds the method decision engine.
func NewDecisionEngine(devices DeviceRegistry) *DecisionEngine {
	return &DecisionEngine{devices: devices}
}

// Method returns otp for trusted devices and password otherwise. Without a
// device identifier the full credential is always required.
func (e *DecisionEngine) Method(ctx context.Context, phone, deviceID string) (Method, error) {
	if deviceID == "" {
		return MethodPassword, nil
	}
	trusted, err := e.devices.DeviceTrusted(ctx, deviceID, phone)
	if err != nil {
		return "", err
	}
	if trusted {
		return MethodOTP, nil
	}
	return MethodPassword, nil
}
