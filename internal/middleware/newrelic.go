package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// TransactionAttributes tags the New Relic transaction started by nrgin with
// the request id and caller, and reports handler errors on it.
func TransactionAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		txn.AddAttribute("requestId", RequestIDFrom(c))
		if caller, ok := CallerFrom(c); ok {
			txn.AddAttribute("callerId", caller.ID)
			txn.AddAttribute("callerRole", string(caller.Role))
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
