package service

import "context"

type DeliveryMethod string

const (
	DeliverySMS  DeliveryMethod = "sms"
	DeliveryCall DeliveryMethod = "call"
)

// OTPSender delivers a one-time password out of band. The transport is an
// external collaborator; this core only cares about success or failure.
type OTPSender interface {
	Send(ctx context.Context, username, code string, method DeliveryMethod) error
}

// EmailCodeSender delivers an email verification code out of band.
type EmailCodeSender interface {
	SendCode(ctx context.Context, email, code string) error
}
