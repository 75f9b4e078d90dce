package restapi

import (
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	jwtverifier "github.com/okta/okta-jwt-verifier-golang"

	"github.com/SharedCode/treestore"
)

// UserHeader selects the acting user id in DEV and QA environments.
const UserHeader = "X-Treestore-User"

const actorKey = "treestore.actor"

// Groups claims granting supervisor privileges.
const (
	SupervisorsGroup         = "supervisors"
	MandatorSupervisorsGroup = "mandator-supervisors"
)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (map[string]any, error)
}

type oktaVerifier struct {
	v *jwtverifier.JwtVerifier
}

// NewOktaVerifier verifies access tokens issued by the default authorization
// server of an okta domain for clientID.
func NewOktaVerifier(domain, clientID string) TokenVerifier {
	setup := jwtverifier.JwtVerifier{
		Issuer: "https://" + domain + "/oauth2/default",
		ClaimsToValidate: map[string]string{
			"aud": "api://default",
			"cid": clientID,
		},
	}
	return oktaVerifier{v: setup.New()}
}

func (o oktaVerifier) Verify(token string) (map[string]any, error) {
	jwt, err := o.v.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}
	return jwt.Claims, nil
}

// Authenticator turns the Authorization header into an ActorContext.
type Authenticator struct {
	// Env is "DEV" (no verification), "QA" (static token accepted) or anything else.
	Env      string
	QAToken  string
	Verifier TokenVerifier
}

// AuthenticatorFromEnv reads TREESTORE_ENV, TREESTORE_QA_TOKEN, OKTA_DOMAIN and OKTA_CLIENT_ID.
func AuthenticatorFromEnv() *Authenticator {
	a := &Authenticator{
		Env:     strings.ToUpper(os.Getenv("TREESTORE_ENV")),
		QAToken: os.Getenv("TREESTORE_QA_TOKEN"),
	}
	if domain := os.Getenv("OKTA_DOMAIN"); domain != "" {
		a.Verifier = NewOktaVerifier(domain, os.Getenv("OKTA_CLIENT_ID"))
	}
	return a
}

// headerActor is the actor of DEV and QA requests: the user named by UserHeader,
// or the system actor.
func headerActor(c *gin.Context) (treestore.ActorContext, error) {
	v := c.GetHeader(UserHeader)
	if v == "" {
		return treestore.System(), nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return treestore.ActorContext{}, fmt.Errorf("invalid %s header %q", UserHeader, v)
	}
	return treestore.ActorContext{UserID: id, Name: v}, nil
}

// actorFromClaims maps the uid and groups claims.
func actorFromClaims(claims map[string]any) (treestore.ActorContext, error) {
	var a treestore.ActorContext
	switch uid := claims["uid"].(type) {
	case float64:
		a.UserID = int64(uid)
	case string:
		id, err := strconv.ParseInt(uid, 10, 64)
		if err != nil {
			return a, fmt.Errorf("invalid uid claim %q", uid)
		}
		a.UserID = id
	default:
		return a, fmt.Errorf("token carries no uid claim")
	}
	if sub, ok := claims["sub"].(string); ok {
		a.Name = sub
	}
	groups, _ := claims["groups"].([]any)
	for _, g := range groups {
		switch g {
		case SupervisorsGroup:
			a.GlobalSupervisor = true
		case MandatorSupervisorsGroup:
			a.MandatorSupervisor = true
		}
	}
	return a, nil
}

// verify authenticates the request and stores the actor on c. It writes the
// failure response itself.
func (a *Authenticator) verify(c *gin.Context) bool {
	abort := func(status int, msg string) bool {
		c.AbortWithStatusJSON(status, gin.H{"message": msg})
		return false
	}
	// Allow easy debugging on dev.
	if a.Env == "DEV" {
		actor, err := headerActor(c)
		if err != nil {
			return abort(http.StatusBadRequest, err.Error())
		}
		c.Set(actorKey, actor)
		return true
	}
	token := c.GetHeader("Authorization")
	if !strings.HasPrefix(token, "Bearer ") {
		return abort(http.StatusUnauthorized, "Unauthorized")
	}
	token = strings.TrimPrefix(token, "Bearer ")
	// QA bypasses token verification with a simple token equality check.
	if a.Env == "QA" && a.QAToken != "" && token == a.QAToken {
		actor, err := headerActor(c)
		if err != nil {
			return abort(http.StatusBadRequest, err.Error())
		}
		c.Set(actorKey, actor)
		return true
	}
	if a.Verifier == nil {
		return abort(http.StatusForbidden, "token verification is not configured")
	}
	claims, err := a.Verifier.Verify(token)
	if err != nil {
		log.Debug("token rejected", "error", err)
		return abort(http.StatusForbidden, err.Error())
	}
	actor, err := actorFromClaims(claims)
	if err != nil {
		return abort(http.StatusForbidden, err.Error())
	}
	c.Set(actorKey, actor)
	return true
}

func actorOf(c *gin.Context) treestore.ActorContext {
	if v, ok := c.Get(actorKey); ok {
		return v.(treestore.ActorContext)
	}
	return treestore.Guest()
}
