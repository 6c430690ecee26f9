// Package auth verifies the bearer credentials clients send in-band after
// connecting. Tokens are HS512 JWTs issued by the users service with a
// role claim plus either a user_id (Admin/User) or a service_name (Service).
package auth
