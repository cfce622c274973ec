package auth

// Endpoints of the vendor's login surface. Overridable so the whole flow
// can be driven against a local test server.
type Endpoints struct {
	AuthorizeURL   string
	LoginURL       string
	MFALandingURL  string
	MFAMediumsURL  string
	MFAInitiateURL string
	MFAVerifyURL   string
	MFAContinueURL string
	TokenURL       string
	RedirectURI    string
}

const accountsBase = "https://accounts.rehau.com/auth/api/v1"

// DefaultClientID is the OAuth client the vendor's mobile app registers as.
const DefaultClientID = "nea-smart-2.0-app"

// DefaultSenderFilter matches the address the MFA codes are sent from.
const DefaultSenderFilter = "noreply@rehau.com"

func DefaultEndpoints() Endpoints {
	return Endpoints{
		AuthorizeURL:   accountsBase + "/oauth/authorize",
		LoginURL:       accountsBase + "/login/identifier",
		MFALandingURL:  accountsBase + "/mfa",
		MFAMediumsURL:  accountsBase + "/mfa/mediums",
		MFAInitiateURL: accountsBase + "/mfa/initiate",
		MFAVerifyURL:   accountsBase + "/mfa/verify",
		MFAContinueURL: accountsBase + "/login/continue",
		TokenURL:       accountsBase + "/oauth/token",
		RedirectURI:    "neasmart://auth/callback",
	}
}
