// Package accountsdk is a Go client for the BloodSync account API.
//
// Client wraps every endpoint one to one. Anonymous calls (sign in,
// registration, password reset) are methods on Client; administrator calls
// need a Session created from an access token.
//
// The password reset screens of a desktop or terminal front end are modelled
// by RequestScreen and RedeemScreen. Both share a ResetFlowState value that is
// passed from the first screen to the second instead of being kept in ambient
// storage. Deadlines in ResetFlowState are anchored to the local monotonic
// clock when the server answers, so wall clock changes on the client do not
// move them.
//
// Basic usage:
//
//	client := accountsdk.NewClient("https://bloodsync.example.org")
//	req := accountsdk.NewRequestScreen(client)
//	flow, err := req.Submit(ctx, "donor@example.com")
//	if err != nil {
//		// show err.Error() in a modal
//	}
//
//	redeem, err := accountsdk.NewRedeemScreen(client, flow)
//	if errors.Is(err, accountsdk.ErrNoResetSession) {
//		// go back to the request screen
//	}
//	res, err := redeem.Submit(ctx, code, newPassword, confirmPassword)
package accountsdk
