// Package storefront holds the domain types shared by the gallery storefront:
// the signed-in Identity, the opaque Session issued by the hosted auth service,
// the tagged Error returned at the service boundary, and the ambient Logger and
// ActivitySink extension points.
//
// Session ownership:
//   - Sessions are issued and refreshed by the hosted auth service. The
//     storefront persists them in an encrypted cookie and never validates
//     token signatures; the service stays the authority.
//   - Identity values are replaced wholesale on every session change
//     notification. Nothing patches an Identity in place.
//
// Error handling:
//   - Every remote failure is normalized into *Error with a Kind (validation,
//     unauthorized, rate_limited, network, unknown). Flow controllers render
//     Error.Message verbatim and use Describe for anything else.
//
// Activity sinks:
//   - ActivitySink receives audit events for sign in, sign up, password reset
//     and sign out flows. Sinks run best-effort (errors are logged) so they never
//     block a user facing flow.
package storefront
