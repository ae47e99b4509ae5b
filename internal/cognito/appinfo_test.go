package cognito

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	citypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentity/types"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIdentity implements IdentityAPI in memory.
type fakeIdentity struct {
	pools   []citypes.IdentityPoolShortDescription
	rolesIn *cognitoidentity.SetIdentityPoolRolesInput
}

func (f *fakeIdentity) ListIdentityPools(ctx context.Context, in *cognitoidentity.ListIdentityPoolsInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.ListIdentityPoolsOutput, error) {
	return &cognitoidentity.ListIdentityPoolsOutput{IdentityPools: f.pools}, nil
}

func (f *fakeIdentity) CreateIdentityPool(ctx context.Context, in *cognitoidentity.CreateIdentityPoolInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.CreateIdentityPoolOutput, error) {
	id := "identity-new"
	f.pools = append(f.pools, citypes.IdentityPoolShortDescription{
		IdentityPoolId:   &id,
		IdentityPoolName: in.IdentityPoolName,
	})
	return &cognitoidentity.CreateIdentityPoolOutput{
		IdentityPoolId:   &id,
		IdentityPoolName: in.IdentityPoolName,
	}, nil
}

func (f *fakeIdentity) SetIdentityPoolRoles(ctx context.Context, in *cognitoidentity.SetIdentityPoolRolesInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.SetIdentityPoolRolesOutput, error) {
	f.rolesIn = in
	return &cognitoidentity.SetIdentityPoolRolesOutput{}, nil
}

// fakeIAM implements IAMAPI with a single optional role.
type fakeIAM struct {
	roleARN  string // "" means the role does not exist yet
	policyIn *iam.PutRolePolicyInput
}

func (f *fakeIAM) GetRole(ctx context.Context, in *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	if f.roleARN == "" {
		return nil, &iamtypes.NoSuchEntityException{Message: aws.String("no role")}
	}
	return &iam.GetRoleOutput{Role: &iamtypes.Role{Arn: &f.roleARN, RoleName: in.RoleName}}, nil
}

func (f *fakeIAM) CreateRole(ctx context.Context, in *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	f.roleARN = "arn:aws:iam::123456789012:role/" + aws.ToString(in.RoleName)
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{Arn: &f.roleARN, RoleName: in.RoleName}}, nil
}

func (f *fakeIAM) PutRolePolicy(ctx context.Context, in *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.policyIn = in
	return &iam.PutRolePolicyOutput{}, nil
}

func newStackService() (*Service, *fakeIDP, *fakeIdentity, *fakeIAM) {
	idp := &fakeIDP{}
	identity := &fakeIdentity{}
	iamc := &fakeIAM{}
	svc := &Service{
		IDP:      idp,
		Identity: identity,
		IAM:      iamc,
		AppName:  "fomomon",
		AppType:  "phone",
		Region:   "ap-south-1",
		Bucket:   "survey",
	}
	return svc, idp, identity, iamc
}

func TestGetAppInfoNoPool(t *testing.T) {
	svc, _, _, _ := newStackService()

	info, err := svc.GetAppInfo(context.Background())
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestGetAppInfoExistingStack(t *testing.T) {
	svc, idp, identity, iamc := newStackService()
	idp.pools = []ciptypes.UserPoolDescriptionType{
		{Id: aws.String("pool-1"), Name: aws.String("other-user-pool")},
		{Id: aws.String("pool-2"), Name: aws.String("fomomon-user-pool")},
	}
	idp.clients = []ciptypes.UserPoolClientDescription{
		{ClientId: aws.String("client-2"), ClientName: aws.String("fomomon-phone-client")},
	}
	identity.pools = []citypes.IdentityPoolShortDescription{
		{IdentityPoolId: aws.String("identity-2"), IdentityPoolName: aws.String("fomomon-identity-pool")},
	}
	iamc.roleARN = "arn:aws:iam::123456789012:role/fomomon-phone-role"

	info, err := svc.GetAppInfo(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "pool-2", info.UserPoolID)
	assert.Equal(t, "client-2", info.ClientID)
	assert.Equal(t, "identity-2", info.IdentityPoolID)
	assert.Equal(t, iamc.roleARN, info.RoleARN)
}

func TestGetAppInfoMissingRole(t *testing.T) {
	svc, idp, _, _ := newStackService()
	idp.pools = []ciptypes.UserPoolDescriptionType{
		{Id: aws.String("pool-2"), Name: aws.String("fomomon-user-pool")},
	}

	// A partially deployed stack still resolves; the role is simply empty.
	info, err := svc.GetAppInfo(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Empty(t, info.RoleARN)
	assert.Empty(t, info.ClientID)
}

func TestEnsureAppSetupCreatesStack(t *testing.T) {
	svc, idp, identity, iamc := newStackService()

	info, err := svc.EnsureAppSetup(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "pool-new", info.UserPoolID)
	assert.Equal(t, "client-new", info.ClientID)
	assert.Equal(t, "identity-new", info.IdentityPoolID)
	assert.Contains(t, info.RoleARN, "fomomon-phone-role")

	// The new client allows password auth.
	require.NotNil(t, idp.createdClientIn)
	assert.Contains(t, idp.createdClientIn.ExplicitAuthFlows, ciptypes.ExplicitAuthFlowsTypeAllowUserPasswordAuth)

	// The authenticated role is bound to the identity pool.
	require.NotNil(t, identity.rolesIn)
	assert.Equal(t, info.RoleARN, identity.rolesIn.Roles["authenticated"])

	// Write access shows up in the inline bucket policy.
	require.NotNil(t, iamc.policyIn)
	policy := aws.ToString(iamc.policyIn.PolicyDocument)
	assert.Contains(t, policy, "s3:PutObject")
	assert.Contains(t, policy, "arn:aws:s3:::survey/*")
}

func TestEnsureAppSetupIdempotent(t *testing.T) {
	svc, idp, identity, _ := newStackService()

	first, err := svc.EnsureAppSetup(context.Background(), false)
	require.NoError(t, err)
	second, err := svc.EnsureAppSetup(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// The second pass found everything instead of creating duplicates.
	assert.Len(t, idp.pools, 1)
	assert.Len(t, identity.pools, 1)

	// Existing clients get their auth flows re-asserted.
	assert.Contains(t, idp.updatedFlows, ciptypes.ExplicitAuthFlowsTypeAllowUserPasswordAuth)
}
