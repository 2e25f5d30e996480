package token

// Decision is the outcome of a permission check.
type Decision struct {
	Granted bool   `json:"granted"`
	Message string `json:"message"`
}

// Evaluator decides whether the bearer of a token may access protected
// resources. Access is role-based: the token must be valid and carry at
// least one role from the allowed set.
type Evaluator struct {
	validator *Validator
	allowed   map[string]struct{}
}

// NewEvaluator creates an evaluator granting access to the given roles.
func NewEvaluator(validator *Validator, roles ...string) *Evaluator {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return &Evaluator{validator: validator, allowed: allowed}
}

// CheckPermission validates the token and checks its roles against the
// allowed set. An invalid token always yields a denied decision with message
// "Invalid token"; the validation reason is not leaked to the caller.
// The current policy is role-based only; resource and scope are part of the
// call shape so a finer-grained policy can replace the body without touching
// callers.
func (e *Evaluator) CheckPermission(tokenString, resource, scope string) Decision {
	result := e.validator.Validate(tokenString)
	if !result.Valid {
		return Decision{Granted: false, Message: "Invalid token"}
	}

	for _, role := range result.Identity.Roles {
		if _, ok := e.allowed[role]; ok {
			return Decision{Granted: true, Message: "Access granted"}
		}
	}

	return Decision{Granted: false, Message: "Access denied"}
}
