package constants

const (
	// ProviderName identifies the provider in callback paths and logs
	ProviderName = "instagram"

	// AuthHeaderName is the name of the Authorization header
	AuthHeaderName = "Authorization"

	// AuthHeaderPrefix is the prefix for the Authorization header value
	AuthHeaderPrefix = "Bearer "

	// AccessTokenParam carries the bearer token on Graph API calls. The
	// provider expects it as a URL parameter, not a header.
	AccessTokenParam = "access_token"

	// DefaultGraphVersion is the Facebook Graph API version used by Business Login
	DefaultGraphVersion = "v18.0"
)

// Basic Display endpoints
const (
	BasicDisplayAuthURL  = "https://api.instagram.com/oauth/authorize"
	BasicDisplayTokenURL = "https://api.instagram.com/oauth/access_token"
	BasicDisplayGraphURL = "https://graph.instagram.com"
)

// Business Login endpoints, formatted with the Graph API version
const (
	BusinessLoginAuthURLFormat  = "https://www.facebook.com/%s/dialog/oauth"
	BusinessLoginGraphURLFormat = "https://graph.facebook.com/%s"
)

// OAuth scopes
var (
	BasicDisplayScopes  = []string{"user_profile", "user_media"}
	BusinessLoginScopes = []string{"instagram_basic", "instagram_manage_comments", "pages_show_list", "pages_read_engagement"}
)

// Graph API field selections
const (
	BasicDisplayMeFields  = "id,username,account_type,media_count"
	BusinessLoginMeFields = "id,name"
	AccountsFields        = "instagram_business_account{id,username,profile_picture_url}"
	BusinessProfileFields = "id,username,profile_picture_url,media_count,followers_count"
	MediaFields           = "id,media_type,media_url,thumbnail_url,permalink,caption,timestamp"
)

// MediaHostSuffixes are the CDN domains media downloads may be fetched from
var MediaHostSuffixes = []string{"cdninstagram.com", "fbcdn.net"}

// Sign-in error codes surfaced to the sign-in page
const (
	SignInErrorAuthFailed        = "auth_failed"
	SignInErrorNoBusinessAccount = "no_business_account"
)
