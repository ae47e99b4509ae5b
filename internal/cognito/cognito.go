// Package cognito wraps the identity backend: user pool bootstrap and the
// admin user operations the directory service performs.
package cognito

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/smithy-go"

	"github.com/fomomon/survey-admin/internal/models"
)

// IdentityProviderAPI is the subset of the user pool client the service uses.
type IdentityProviderAPI interface {
	ListUserPools(ctx context.Context, params *cip.ListUserPoolsInput, optFns ...func(*cip.Options)) (*cip.ListUserPoolsOutput, error)
	CreateUserPool(ctx context.Context, params *cip.CreateUserPoolInput, optFns ...func(*cip.Options)) (*cip.CreateUserPoolOutput, error)
	ListUserPoolClients(ctx context.Context, params *cip.ListUserPoolClientsInput, optFns ...func(*cip.Options)) (*cip.ListUserPoolClientsOutput, error)
	CreateUserPoolClient(ctx context.Context, params *cip.CreateUserPoolClientInput, optFns ...func(*cip.Options)) (*cip.CreateUserPoolClientOutput, error)
	UpdateUserPoolClient(ctx context.Context, params *cip.UpdateUserPoolClientInput, optFns ...func(*cip.Options)) (*cip.UpdateUserPoolClientOutput, error)
	ListUsers(ctx context.Context, params *cip.ListUsersInput, optFns ...func(*cip.Options)) (*cip.ListUsersOutput, error)
	AdminCreateUser(ctx context.Context, params *cip.AdminCreateUserInput, optFns ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error)
	AdminSetUserPassword(ctx context.Context, params *cip.AdminSetUserPasswordInput, optFns ...func(*cip.Options)) (*cip.AdminSetUserPasswordOutput, error)
	AdminDeleteUser(ctx context.Context, params *cip.AdminDeleteUserInput, optFns ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error)
	DescribeUserPool(ctx context.Context, params *cip.DescribeUserPoolInput, optFns ...func(*cip.Options)) (*cip.DescribeUserPoolOutput, error)
}

// IdentityAPI is the subset of the identity pool client the service uses.
type IdentityAPI interface {
	ListIdentityPools(ctx context.Context, params *cognitoidentity.ListIdentityPoolsInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.ListIdentityPoolsOutput, error)
	CreateIdentityPool(ctx context.Context, params *cognitoidentity.CreateIdentityPoolInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.CreateIdentityPoolOutput, error)
	SetIdentityPoolRoles(ctx context.Context, params *cognitoidentity.SetIdentityPoolRolesInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.SetIdentityPoolRolesOutput, error)
}

// IAMAPI is the subset of the IAM client the service uses for the mobile
// access role.
type IAMAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
}

// Service performs identity backend operations for one app deployment.
type Service struct {
	IDP      IdentityProviderAPI
	Identity IdentityAPI
	IAM      IAMAPI

	AppName string
	AppType string
	Region  string
	Bucket  string
}

// NormalizeUsername lowercases and trims a display name into the pool
// username. Usernames are the identity-backend key.
func NormalizeUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ListUsers returns every account in the pool, flattened.
func (s *Service) ListUsers(ctx context.Context, userPoolID string) ([]models.IdentityUser, error) {
	var users []models.IdentityUser
	p := cip.NewListUsersPaginator(s.IDP, &cip.ListUsersInput{
		UserPoolId: &userPoolID,
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, u := range page.Users {
			users = append(users, flattenUser(u))
		}
	}
	return users, nil
}

// flattenUser turns a pool user record into the wire shape.
func flattenUser(u ciptypes.UserType) models.IdentityUser {
	attrs := make(map[string]string, len(u.Attributes))
	for _, a := range u.Attributes {
		if a.Name != nil && a.Value != nil {
			attrs[*a.Name] = *a.Value
		}
	}
	return models.IdentityUser{
		Username:          aws.ToString(u.Username),
		Email:             attrs["email"],
		Name:              attrs["name"],
		PreferredUsername: attrs["preferred_username"],
		Status:            string(u.UserStatus),
		Enabled:           u.Enabled,
	}
}

// AddUser creates a pool account with a permanent password and suppressed
// welcome message.
func (s *Service) AddUser(ctx context.Context, userPoolID, username, name, email, password string) error {
	username = NormalizeUsername(username)
	_, err := s.IDP.AdminCreateUser(ctx, &cip.AdminCreateUserInput{
		UserPoolId:        &userPoolID,
		Username:          &username,
		TemporaryPassword: &password,
		UserAttributes: []ciptypes.AttributeType{
			{Name: aws.String("email"), Value: &email},
			{Name: aws.String("name"), Value: &name},
			{Name: aws.String("preferred_username"), Value: &username},
		},
		MessageAction: ciptypes.MessageActionTypeSuppress,
	})
	if err != nil {
		return err
	}
	return s.SetPassword(ctx, userPoolID, username, password)
}

// DeleteUser removes the pool account.
func (s *Service) DeleteUser(ctx context.Context, userPoolID, username string) error {
	username = NormalizeUsername(username)
	_, err := s.IDP.AdminDeleteUser(ctx, &cip.AdminDeleteUserInput{
		UserPoolId: &userPoolID,
		Username:   &username,
	})
	return err
}

// SetPassword sets a permanent password on the pool account.
func (s *Service) SetPassword(ctx context.Context, userPoolID, username, password string) error {
	username = NormalizeUsername(username)
	_, err := s.IDP.AdminSetUserPassword(ctx, &cip.AdminSetUserPasswordInput{
		UserPoolId: &userPoolID,
		Username:   &username,
		Password:   &password,
		Permanent:  true,
	})
	return err
}

// PasswordPolicy returns the pool's password policy, flattened. Zero values
// when the pool reports none.
func (s *Service) PasswordPolicy(ctx context.Context, userPoolID string) (models.PasswordPolicy, error) {
	out, err := s.IDP.DescribeUserPool(ctx, &cip.DescribeUserPoolInput{
		UserPoolId: &userPoolID,
	})
	if err != nil {
		return models.PasswordPolicy{}, err
	}
	var policy models.PasswordPolicy
	if out.UserPool == nil || out.UserPool.Policies == nil || out.UserPool.Policies.PasswordPolicy == nil {
		return policy, nil
	}
	pp := out.UserPool.Policies.PasswordPolicy
	policy.MinimumLength = int(aws.ToInt32(pp.MinimumLength))
	policy.RequireUppercase = pp.RequireUppercase
	policy.RequireLowercase = pp.RequireLowercase
	policy.RequireNumbers = pp.RequireNumbers
	policy.RequireSymbols = pp.RequireSymbols
	return policy, nil
}

// IsUsernameExists reports whether err is the pool's duplicate-username error.
func IsUsernameExists(err error) bool {
	var e *ciptypes.UsernameExistsException
	return errors.As(err, &e)
}

// IsInvalidPassword reports whether err is the pool's password-policy error.
func IsInvalidPassword(err error) bool {
	var e *ciptypes.InvalidPasswordException
	return errors.As(err, &e)
}

// APIErrorDetail renders an AWS API error as "<Code>: <Message>" for the
// response detail field, falling back to err.Error().
func APIErrorDetail(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return err.Error()
}

// APIErrorMessage returns just the service message of an AWS API error,
// falling back to err.Error(). Password-policy violations surface this way
// so the console shows the pool's own wording.
func APIErrorMessage(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorMessage() != "" {
		return apiErr.ErrorMessage()
	}
	return err.Error()
}
