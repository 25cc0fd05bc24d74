// Package notification fans identity-provider notices out to delivery
// channels: SMS through pkg/smsgateway and email through an SMTP relay.
//
// A NotificationManager pairs a notifier per NotificationSystem with a
// NoticeTemplate per (NoticeType, NotificationSystem):
//
//	nm, err := notification.NewNotificationManager(
//		notification.WithSMSGateway(gatewayClient),
//		notification.WithSMTP(smtpConfig),
//		notification.WithDefaultTemplates(),
//	)
//
//	ack, err := nm.Send(ctx, notification.TwofaCodeNotice, notification.SMSSystem,
//		notification.NotificationData{To: "+15551234567", Data: map[string]string{"Code": "123456"}})
//
// Templates use text/template for SMS and plain-text email and html/template
// for the HTML alternative. A missing key is a render error.
//
// MockNotifier records what would have been sent and is used by the tests of
// the packages that depend on this one.
package notification
