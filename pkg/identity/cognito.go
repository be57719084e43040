package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
)

// DefaultCallTimeout bounds every call to the identity provider.
const DefaultCallTimeout = 10 * time.Second

// cognitoAPI is the subset of the Cognito user pools client we call.
type cognitoAPI interface {
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GetUser(ctx context.Context, params *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	GlobalSignOut(ctx context.Context, params *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
}

// CognitoConfig identifies the user pool app client.
type CognitoConfig struct {
	Region      string
	UserPoolID  string
	AppClientID string
	// Endpoint replaces the regional endpoint when set.
	Endpoint   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// CognitoProvider talks to a Cognito user pool through its public app
// client. Requests are unsigned, the same as a browser SDK would send.
type CognitoProvider struct {
	client   cognitoAPI
	clientID string
	timeout  time.Duration
	now      func() time.Time
}

// NewCognitoProvider builds a provider for the configured app client.
func NewCognitoProvider(cfg CognitoConfig) *CognitoProvider {
	opts := cip.Options{
		Region:           cfg.Region,
		Credentials:      aws.AnonymousCredentials{},
		RetryMaxAttempts: 1,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if cfg.HTTPClient != nil {
		opts.HTTPClient = cfg.HTTPClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &CognitoProvider{
		client:   cip.New(opts),
		clientID: cfg.AppClientID,
		timeout:  timeout,
		now:      time.Now,
	}
}

func (p *CognitoProvider) CurrentSession(ctx context.Context, tokens Tokens) (Session, error) {
	if tokens.IsZero() {
		return Session{}, ErrNoCurrentSession
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if tokens.AccessToken == "" || tokens.Expired(p.now()) {
		refreshed, err := p.refresh(ctx, tokens.RefreshToken)
		if err != nil {
			return Session{}, err
		}
		tokens = refreshed
	}

	out, err := p.client.GetUser(ctx, &cip.GetUserInput{AccessToken: aws.String(tokens.AccessToken)})
	if err != nil {
		if isAPIError(err, CodeNotAuthorized) {
			return Session{}, ErrNoCurrentSession
		}
		return Session{}, mapCognitoError(err)
	}

	user := User{Subject: aws.ToString(out.Username)}
	for _, attr := range out.UserAttributes {
		switch aws.ToString(attr.Name) {
		case "sub":
			user.Subject = aws.ToString(attr.Value)
		case "email":
			user.Email = aws.ToString(attr.Value)
		}
	}
	if user.Email == "" {
		user.Email = tokens.Email()
	}
	return Session{User: user, Tokens: tokens}, nil
}

// refresh trades a refresh token for new ID and access tokens. The refresh
// token itself is not rotated.
func (p *CognitoProvider) refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if refreshToken == "" {
		return Tokens{}, ErrNoCurrentSession
	}
	out, err := p.client.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeRefreshTokenAuth,
		ClientId:       aws.String(p.clientID),
		AuthParameters: map[string]string{"REFRESH_TOKEN": refreshToken},
	})
	if err != nil {
		if isAPIError(err, CodeNotAuthorized) {
			return Tokens{}, ErrNoCurrentSession
		}
		return Tokens{}, mapCognitoError(err)
	}
	tokens, err := p.tokensFrom(out)
	if err != nil {
		return Tokens{}, err
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

func (p *CognitoProvider) SignIn(ctx context.Context, email, password string) (Tokens, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(p.clientID),
		AuthParameters: map[string]string{
			"USERNAME": email,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return Tokens{}, mapCognitoError(err)
	}
	return p.tokensFrom(out)
}

func (p *CognitoProvider) tokensFrom(out *cip.InitiateAuthOutput) (Tokens, error) {
	if out.AuthenticationResult == nil {
		if out.ChallengeName != "" {
			return Tokens{}, newError(CodeUnsupportedFlow, fmt.Sprintf("Sign in requires %s, which this site does not support.", out.ChallengeName))
		}
		return Tokens{}, newError(CodeNotAuthorized, "Sign in returned no tokens.")
	}
	result := out.AuthenticationResult
	return Tokens{
		AccessToken:  aws.ToString(result.AccessToken),
		IDToken:      aws.ToString(result.IdToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		ExpiresAt:    p.now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}, nil
}

func (p *CognitoProvider) SignOut(ctx context.Context, tokens Tokens) error {
	if tokens.AccessToken == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.client.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(tokens.AccessToken)})
	if err != nil {
		return mapCognitoError(err)
	}
	return nil
}

func (p *CognitoProvider) SignUp(ctx context.Context, input SignUpInput) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.client.SignUp(ctx, &cip.SignUpInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(input.Username),
		Password: aws.String(input.Password),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(input.Username)},
		},
	})
	if err != nil {
		return mapCognitoError(err)
	}
	return nil
}

func (p *CognitoProvider) ConfirmSignUp(ctx context.Context, email, code string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.client.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
	})
	if err != nil {
		return mapCognitoError(err)
	}
	return nil
}

// mapCognitoError turns SDK failures into *Error so the message can be
// shown to the user.
func mapCognitoError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.ErrorMessage()
		if msg == "" {
			msg = apiErr.ErrorCode()
		}
		return &Error{Code: apiErr.ErrorCode(), Message: msg, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodeServiceUnavailable, Message: "The sign-in service took too long to respond. Please try again.", Err: err}
	}
	return &Error{Code: CodeServiceUnavailable, Message: "The sign-in service is unavailable. Please try again later.", Err: err}
}

func isAPIError(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
