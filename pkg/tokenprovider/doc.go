// Package tokenprovider issues the short numeric codes sent by SMS or email
// and verifies the codes typed back, including authenticator-app codes.
//
// A code is a six-digit TOTP value computed from a per-(user, purpose)
// secret, HMAC-SHA256(securityStamp, "<purpose>:<userID>"). Two purposes
// are used by the flows:
//
//   - ChangePhoneNumberPurpose(phone): verifying or enabling a phone number.
//     A code issued for one number never verifies for another.
//   - PurposePhone / PurposeEmail: the sign-in challenge.
//
// Codes last DefaultPeriod seconds with DefaultSkew steps of tolerance, and
// rotating the user's security stamp invalidates all of them. A code that
// verified once is recorded in a UsedCodeStore and fails afterwards:
//
//	provider := tokenprovider.NewProvider(
//		tokenprovider.WithUsedCodeStore(tokenprovider.NewRedisUsedCodeStore(rdb, "")),
//	)
//	code, _ := provider.GenerateChangePhoneNumberToken(ctx, u, "+15551234567")
//	ok, _ := provider.VerifyChangePhoneNumberToken(ctx, u, code, "+15551234567")
package tokenprovider
