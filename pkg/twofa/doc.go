// Package twofa orchestrates phone-number verification and second-factor
// enrolment.
//
// PhoneVerificationService pulls codes from a CodeGenerator, hands them to a
// Notifier (SMS through the message gateway, email through SMTP) and writes
// the outcome back through a UserStore:
//
//	svc := twofa.NewPhoneVerificationService(userManager, codes, notifications,
//		twofa.WithMetrics(m),
//		twofa.WithClientRememberer(signInManager),
//	)
//
//	// send "Verify code: 123456" to the new number
//	ack, err := svc.StartPhoneVerification(ctx, u, "+41791234567")
//
//	// later, with the code the user typed
//	ok, err := svc.CheckVerification(ctx, u, "+41791234567", "123 456")
//	err = svc.ConfirmPhoneFromVerification(ctx, u, "+41791234567", ok)
//
// Gateway rejections come back as GATEWAY_FAILED errors whose message is the
// gateway's reason phrase; the underlying *smsgateway.GatewayError stays
// reachable with errors.As. Nothing is retried.
//
// The overall TwoFactorEnabled flag follows the per-factor flags: enabling a
// factor sets it, disabling the last factor clears it.
package twofa
