// Package nav names the screens a response can send the client to.
package nav

const (
	Login       = "login"
	Home        = "homeScreen"
	MyFeedbacks = "myFeedbacks"
	Back        = "back"
)

func CompanyDetails(companyID string) string { return "companyDetails/" + companyID }

func CreateFeedback(companyID string) string { return "createFeedback/" + companyID }

// Start is the first screen: the directory for a signed-in user, else login.
func Start(signedIn bool) string {
	if signedIn {
		return Home
	}
	return Login
}
