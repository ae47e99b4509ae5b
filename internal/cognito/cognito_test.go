package cognito

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIDP implements IdentityProviderAPI in memory. The zero value is an
// empty deployment with no pool.
type fakeIDP struct {
	pools   []ciptypes.UserPoolDescriptionType
	clients []ciptypes.UserPoolClientDescription

	userPages [][]ciptypes.UserType
	listCalls int

	createUserIn    *cip.AdminCreateUserInput
	createUserErr   error
	setPasswordIn   *cip.AdminSetUserPasswordInput
	deleteUserIn    *cip.AdminDeleteUserInput
	describeOut     *cip.DescribeUserPoolOutput
	updatedFlows    []ciptypes.ExplicitAuthFlowsType
	createdClientIn *cip.CreateUserPoolClientInput
}

func (f *fakeIDP) ListUserPools(ctx context.Context, in *cip.ListUserPoolsInput, optFns ...func(*cip.Options)) (*cip.ListUserPoolsOutput, error) {
	return &cip.ListUserPoolsOutput{UserPools: f.pools}, nil
}

func (f *fakeIDP) CreateUserPool(ctx context.Context, in *cip.CreateUserPoolInput, optFns ...func(*cip.Options)) (*cip.CreateUserPoolOutput, error) {
	id := "pool-new"
	f.pools = append(f.pools, ciptypes.UserPoolDescriptionType{Id: &id, Name: in.PoolName})
	return &cip.CreateUserPoolOutput{
		UserPool: &ciptypes.UserPoolType{Id: &id, Name: in.PoolName},
	}, nil
}

func (f *fakeIDP) ListUserPoolClients(ctx context.Context, in *cip.ListUserPoolClientsInput, optFns ...func(*cip.Options)) (*cip.ListUserPoolClientsOutput, error) {
	return &cip.ListUserPoolClientsOutput{UserPoolClients: f.clients}, nil
}

func (f *fakeIDP) CreateUserPoolClient(ctx context.Context, in *cip.CreateUserPoolClientInput, optFns ...func(*cip.Options)) (*cip.CreateUserPoolClientOutput, error) {
	f.createdClientIn = in
	id := "client-new"
	f.clients = append(f.clients, ciptypes.UserPoolClientDescription{ClientId: &id, ClientName: in.ClientName})
	return &cip.CreateUserPoolClientOutput{
		UserPoolClient: &ciptypes.UserPoolClientType{ClientId: &id, ClientName: in.ClientName},
	}, nil
}

func (f *fakeIDP) UpdateUserPoolClient(ctx context.Context, in *cip.UpdateUserPoolClientInput, optFns ...func(*cip.Options)) (*cip.UpdateUserPoolClientOutput, error) {
	f.updatedFlows = in.ExplicitAuthFlows
	return &cip.UpdateUserPoolClientOutput{}, nil
}

func (f *fakeIDP) ListUsers(ctx context.Context, in *cip.ListUsersInput, optFns ...func(*cip.Options)) (*cip.ListUsersOutput, error) {
	page := f.listCalls
	f.listCalls++
	out := &cip.ListUsersOutput{}
	if page < len(f.userPages) {
		out.Users = f.userPages[page]
	}
	if page+1 < len(f.userPages) {
		out.PaginationToken = aws.String("next")
	}
	return out, nil
}

func (f *fakeIDP) AdminCreateUser(ctx context.Context, in *cip.AdminCreateUserInput, optFns ...func(*cip.Options)) (*cip.AdminCreateUserOutput, error) {
	f.createUserIn = in
	if f.createUserErr != nil {
		return nil, f.createUserErr
	}
	return &cip.AdminCreateUserOutput{}, nil
}

func (f *fakeIDP) AdminSetUserPassword(ctx context.Context, in *cip.AdminSetUserPasswordInput, optFns ...func(*cip.Options)) (*cip.AdminSetUserPasswordOutput, error) {
	f.setPasswordIn = in
	return &cip.AdminSetUserPasswordOutput{}, nil
}

func (f *fakeIDP) AdminDeleteUser(ctx context.Context, in *cip.AdminDeleteUserInput, optFns ...func(*cip.Options)) (*cip.AdminDeleteUserOutput, error) {
	f.deleteUserIn = in
	return &cip.AdminDeleteUserOutput{}, nil
}

func (f *fakeIDP) DescribeUserPool(ctx context.Context, in *cip.DescribeUserPoolInput, optFns ...func(*cip.Options)) (*cip.DescribeUserPoolOutput, error) {
	if f.describeOut != nil {
		return f.describeOut, nil
	}
	return &cip.DescribeUserPoolOutput{}, nil
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "jo rivera", NormalizeUsername("  Jo Rivera "))
	assert.Equal(t, "", NormalizeUsername("   "))
}

func TestListUsersFlattensAndPaginates(t *testing.T) {
	idp := &fakeIDP{userPages: [][]ciptypes.UserType{
		{
			{
				Username:   aws.String("jo"),
				UserStatus: ciptypes.UserStatusTypeConfirmed,
				Enabled:    true,
				Attributes: []ciptypes.AttributeType{
					{Name: aws.String("email"), Value: aws.String("jo@example.org")},
					{Name: aws.String("name"), Value: aws.String("Jo Rivera")},
					{Name: aws.String("preferred_username"), Value: aws.String("jo")},
				},
			},
		},
		{
			{Username: aws.String("sam")},
		},
	}}
	svc := &Service{IDP: idp}

	users, err := svc.ListUsers(context.Background(), "pool-1")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, 2, idp.listCalls)

	assert.Equal(t, "jo", users[0].Username)
	assert.Equal(t, "jo@example.org", users[0].Email)
	assert.Equal(t, "Jo Rivera", users[0].Name)
	assert.Equal(t, "CONFIRMED", users[0].Status)
	assert.True(t, users[0].Enabled)

	// Missing attributes flatten to empty strings.
	assert.Equal(t, "sam", users[1].Username)
	assert.Empty(t, users[1].Email)
	assert.False(t, users[1].Enabled)
}

func TestAddUserSetsPermanentPassword(t *testing.T) {
	idp := &fakeIDP{}
	svc := &Service{IDP: idp}

	err := svc.AddUser(context.Background(), "pool-1", "Jo Rivera", "Jo Rivera", "jo@example.org", "hunter2hunter2")
	require.NoError(t, err)

	require.NotNil(t, idp.createUserIn)
	assert.Equal(t, "jo rivera", *idp.createUserIn.Username)
	assert.Equal(t, ciptypes.MessageActionTypeSuppress, idp.createUserIn.MessageAction)

	require.NotNil(t, idp.setPasswordIn)
	assert.Equal(t, "jo rivera", *idp.setPasswordIn.Username)
	assert.Equal(t, "hunter2hunter2", *idp.setPasswordIn.Password)
	assert.True(t, idp.setPasswordIn.Permanent)
}

func TestAddUserDuplicate(t *testing.T) {
	idp := &fakeIDP{createUserErr: &ciptypes.UsernameExistsException{Message: aws.String("exists")}}
	svc := &Service{IDP: idp}

	err := svc.AddUser(context.Background(), "pool-1", "jo", "Jo", "jo@example.org", "pw")
	require.Error(t, err)
	assert.True(t, IsUsernameExists(err))
	assert.False(t, IsInvalidPassword(err))
	// The failed create never reaches the password step.
	assert.Nil(t, idp.setPasswordIn)
}

func TestDeleteUserNormalizes(t *testing.T) {
	idp := &fakeIDP{}
	svc := &Service{IDP: idp}

	require.NoError(t, svc.DeleteUser(context.Background(), "pool-1", " Jo "))
	require.NotNil(t, idp.deleteUserIn)
	assert.Equal(t, "jo", *idp.deleteUserIn.Username)
}

func TestPasswordPolicy(t *testing.T) {
	idp := &fakeIDP{describeOut: &cip.DescribeUserPoolOutput{
		UserPool: &ciptypes.UserPoolType{
			Policies: &ciptypes.UserPoolPolicyType{
				PasswordPolicy: &ciptypes.PasswordPolicyType{
					MinimumLength:    aws.Int32(10),
					RequireUppercase: true,
					RequireNumbers:   true,
				},
			},
		},
	}}
	svc := &Service{IDP: idp}

	policy, err := svc.PasswordPolicy(context.Background(), "pool-1")
	require.NoError(t, err)
	assert.Equal(t, 10, policy.MinimumLength)
	assert.True(t, policy.RequireUppercase)
	assert.False(t, policy.RequireSymbols)
}

func TestPasswordPolicyEmptyPool(t *testing.T) {
	svc := &Service{IDP: &fakeIDP{}}

	policy, err := svc.PasswordPolicy(context.Background(), "pool-1")
	require.NoError(t, err)
	assert.Zero(t, policy)
}

func TestAPIErrorRendering(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "InvalidPasswordException", Message: "Password not long enough"}
	assert.Equal(t, "InvalidPasswordException: Password not long enough", APIErrorDetail(apiErr))
	assert.Equal(t, "Password not long enough", APIErrorMessage(apiErr))

	plain := errors.New("dial tcp: connection refused")
	assert.Equal(t, plain.Error(), APIErrorDetail(plain))
	assert.Equal(t, plain.Error(), APIErrorMessage(plain))
}
