package constants

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	HeaderAuthorization   = "Authorization"
	HeaderXRequestID      = "X-Request-ID"
	HeaderStripeSignature = "Stripe-Signature"

	// Gin context keys set by the auth middleware.
	ContextKeyFacilityID = "facility_id"
	ContextKeyUserID     = "user_id"
	ContextKeySuperAdmin = "super_admin"
	ContextKeyRequestID  = "request_id"

	TableSubscriptions     = "subscriptions"
	TableSubscriptionTiers = "subscription_tiers"
	TablePaymentEvents     = "payment_events"
)
