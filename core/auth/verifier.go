package auth

import "github.com/umirovdev/maktab/core/user"

// Fixed bootstrap credential. Logging in with it provisions the first
// teacher account on a fresh database (see Session.Login).
const (
	bootstrapTeacherUsername = "teacher"
	bootstrapTeacherPassword = "Jamshed123"
)

// IsMasterCredential reports whether the presented password is the fixed
// master password for the designated bootstrap teacher account.
//
// KNOWN BACKDOOR: this deliberately bypasses the stored hash (plaintext
// comparison) so the bootstrap teacher can always get back in. It applies
// to exactly one (role, username) pair and must not be widened or folded
// into the generic password check.
func IsMasterCredential(usr user.User, password string) bool {
	return usr.Role == user.RoleTeacher &&
		usr.Username == bootstrapTeacherUsername &&
		password == bootstrapTeacherPassword
}

// VerifyPassword checks a presented password against the stored bcrypt
// hash, or against the master-credential escape hatch. Pure predicate.
func VerifyPassword(usr user.User, password string) bool {
	if usr.CheckPassword(password) == nil {
		return true
	}
	return IsMasterCredential(usr, password)
}

func isBootstrapLogin(username, password string) bool {
	return username == bootstrapTeacherUsername && password == bootstrapTeacherPassword
}
