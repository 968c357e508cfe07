package domain

// Visitor identifies who a cart operation acts for. A visitor with a
// CustomerID is authenticated and uses the persistent cart; otherwise the
// anonymous cart of SessionID is used.
type Visitor struct {
	SessionID  string
	CustomerID string
}

func AnonymousVisitor(sessionID string) Visitor {
	return Visitor{SessionID: sessionID}
}

func CustomerVisitor(customerID string) Visitor {
	return Visitor{CustomerID: customerID}
}

func (v Visitor) Authenticated() bool {
	return v.CustomerID != ""
}
