package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/staff"
)

const contextMemberKey = "member"

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "memberToken",
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64      `json:"oriat,omitempty"`
	Name         string     `json:"name,omitempty"`
	Email        string     `json:"email,omitempty"`
	Role         staff.Role `json:"role,omitempty"`
}

func (s *Server) memberClaims(m staff.Member, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    s.deps.Conf.AppName,
			Subject:   m.ID,
			Audience:  "Staff",
			ExpiresAt: now.Add(s.deps.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Name:         m.Name,
		Email:        m.Email,
		Role:         m.Role,
	}
}

// GenerateToken returns a signed JWT representing m.
func (s *Server) GenerateToken(m staff.Member) (string, error) {
	return s.signClaims(s.memberClaims(m))
}

func (s *Server) signClaims(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(s.jwtConf.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(s.jwtConf.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (s *Server) contextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(s.jwtConf.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// contextMember loads the member the token was issued to. It is cached on ctx.
func (s *Server) contextMember(ctx echo.Context) (staff.Member, error) {
	if m, ok := ctx.Get(contextMemberKey).(staff.Member); ok {
		return m, nil
	}
	claims, err := s.contextClaims(ctx)
	if err != nil {
		return staff.Member{}, err
	}
	m, err := s.deps.StaffSvc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return staff.Member{}, errUnauthorized
		}
		return staff.Member{}, errors.Wrap(err, "finding staff member by ID")
	}
	ctx.Set(contextMemberKey, m)
	return m, nil
}

func (s *Server) refreshToken(ctx echo.Context) (string, error) {
	claims, err := s.contextClaims(ctx)
	if err != nil {
		return "", err
	}
	m, err := s.contextMember(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context member")
	}
	if !m.IsActive {
		return "", errAccountDeactivated
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(s.deps.Conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}
	return s.signClaims(s.memberClaims(m, claims.OrigIssuedAt))
}
