package cognito

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	citypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentity/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// AppInfo identifies the deployed identity stack for one app.
type AppInfo struct {
	UserPoolID     string
	ClientID       string
	IdentityPoolID string
	RoleARN        string
}

const listPageSize = 60

var explicitAuthFlows = []ciptypes.ExplicitAuthFlowsType{
	ciptypes.ExplicitAuthFlowsTypeAllowUserPasswordAuth,
	ciptypes.ExplicitAuthFlowsTypeAllowUserSrpAuth,
	ciptypes.ExplicitAuthFlowsTypeAllowRefreshTokenAuth,
}

func (s *Service) userPoolName() string     { return s.AppName + "-user-pool" }
func (s *Service) clientName() string       { return s.AppName + "-" + s.AppType + "-client" }
func (s *Service) identityPoolName() string { return s.AppName + "-identity-pool" }
func (s *Service) roleName() string         { return s.AppName + "-" + s.AppType + "-role" }

// GetAppInfo looks up the existing identity stack. Returns nil when the user
// pool does not exist; client, identity pool and role may be empty when only
// partially deployed.
func (s *Service) GetAppInfo(ctx context.Context) (*AppInfo, error) {
	userPoolID, err := s.findUserPool(ctx)
	if err != nil {
		return nil, err
	}
	if userPoolID == "" {
		return nil, nil
	}

	clientID, err := s.findUserPoolClient(ctx, userPoolID, false)
	if err != nil {
		return nil, err
	}
	identityPoolID, err := s.findIdentityPool(ctx)
	if err != nil {
		return nil, err
	}

	roleARN := ""
	role, err := s.IAM.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(s.roleName())})
	if err != nil {
		var nse *iamtypes.NoSuchEntityException
		if !errors.As(err, &nse) {
			return nil, err
		}
	} else if role.Role != nil {
		roleARN = aws.ToString(role.Role.Arn)
	}

	return &AppInfo{
		UserPoolID:     userPoolID,
		ClientID:       clientID,
		IdentityPoolID: identityPoolID,
		RoleARN:        roleARN,
	}, nil
}

// EnsureAppSetup gets or creates the whole identity stack: user pool, app
// client, identity pool, the mobile S3 access role, and the role binding.
func (s *Service) EnsureAppSetup(ctx context.Context, writeAccess bool) (*AppInfo, error) {
	userPoolID, err := s.ensureUserPool(ctx)
	if err != nil {
		return nil, err
	}
	clientID, err := s.ensureUserPoolClient(ctx, userPoolID)
	if err != nil {
		return nil, err
	}
	identityPoolID, err := s.ensureIdentityPool(ctx, userPoolID, clientID)
	if err != nil {
		return nil, err
	}
	roleARN, err := s.ensureRole(ctx, identityPoolID, writeAccess)
	if err != nil {
		return nil, err
	}
	_, err = s.Identity.SetIdentityPoolRoles(ctx, &cognitoidentity.SetIdentityPoolRolesInput{
		IdentityPoolId: &identityPoolID,
		Roles:          map[string]string{"authenticated": roleARN},
	})
	if err != nil {
		return nil, err
	}
	return &AppInfo{
		UserPoolID:     userPoolID,
		ClientID:       clientID,
		IdentityPoolID: identityPoolID,
		RoleARN:        roleARN,
	}, nil
}

// findUserPool returns the app's user pool id, or "" when absent.
func (s *Service) findUserPool(ctx context.Context) (string, error) {
	out, err := s.IDP.ListUserPools(ctx, &cip.ListUserPoolsInput{
		MaxResults: aws.Int32(listPageSize),
	})
	if err != nil {
		return "", err
	}
	for _, pool := range out.UserPools {
		if aws.ToString(pool.Name) == s.userPoolName() {
			return aws.ToString(pool.Id), nil
		}
	}
	return "", nil
}

// ensureUserPool gets or creates the app's user pool.
func (s *Service) ensureUserPool(ctx context.Context) (string, error) {
	id, err := s.findUserPool(ctx)
	if err != nil || id != "" {
		return id, err
	}
	out, err := s.IDP.CreateUserPool(ctx, &cip.CreateUserPoolInput{
		PoolName: aws.String(s.userPoolName()),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.UserPool.Id), nil
}

// findUserPoolClient returns the app client id, or "" when absent. When
// refreshFlows is set the existing client's auth flows are re-asserted, so
// older deployments pick up password auth.
func (s *Service) findUserPoolClient(ctx context.Context, userPoolID string, refreshFlows bool) (string, error) {
	out, err := s.IDP.ListUserPoolClients(ctx, &cip.ListUserPoolClientsInput{
		UserPoolId: &userPoolID,
		MaxResults: aws.Int32(listPageSize),
	})
	if err != nil {
		return "", err
	}
	for _, c := range out.UserPoolClients {
		if aws.ToString(c.ClientName) != s.clientName() {
			continue
		}
		clientID := aws.ToString(c.ClientId)
		if refreshFlows {
			// Best effort, matching prior deployments that predate the flows.
			_, _ = s.IDP.UpdateUserPoolClient(ctx, &cip.UpdateUserPoolClientInput{
				UserPoolId:        &userPoolID,
				ClientId:          &clientID,
				ExplicitAuthFlows: explicitAuthFlows,
			})
		}
		return clientID, nil
	}
	return "", nil
}

// ensureUserPoolClient gets or creates the app client.
func (s *Service) ensureUserPoolClient(ctx context.Context, userPoolID string) (string, error) {
	id, err := s.findUserPoolClient(ctx, userPoolID, true)
	if err != nil || id != "" {
		return id, err
	}
	out, err := s.IDP.CreateUserPoolClient(ctx, &cip.CreateUserPoolClientInput{
		UserPoolId:        &userPoolID,
		ClientName:        aws.String(s.clientName()),
		GenerateSecret:    false,
		ExplicitAuthFlows: explicitAuthFlows,
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.UserPoolClient.ClientId), nil
}

// findIdentityPool returns the app's identity pool id, or "" when absent.
func (s *Service) findIdentityPool(ctx context.Context) (string, error) {
	out, err := s.Identity.ListIdentityPools(ctx, &cognitoidentity.ListIdentityPoolsInput{
		MaxResults: aws.Int32(listPageSize),
	})
	if err != nil {
		return "", err
	}
	for _, pool := range out.IdentityPools {
		if aws.ToString(pool.IdentityPoolName) == s.identityPoolName() {
			return aws.ToString(pool.IdentityPoolId), nil
		}
	}
	return "", nil
}

// ensureIdentityPool gets or creates the identity pool bound to the user
// pool client.
func (s *Service) ensureIdentityPool(ctx context.Context, userPoolID, clientID string) (string, error) {
	id, err := s.findIdentityPool(ctx)
	if err != nil || id != "" {
		return id, err
	}
	provider := fmt.Sprintf("cognito-idp.%s.amazonaws.com/%s", s.Region, userPoolID)
	out, err := s.Identity.CreateIdentityPool(ctx, &cognitoidentity.CreateIdentityPoolInput{
		IdentityPoolName:               aws.String(s.identityPoolName()),
		AllowUnauthenticatedIdentities: false,
		CognitoIdentityProviders: []citypes.CognitoIdentityProvider{
			{ProviderName: aws.String(provider), ClientId: &clientID},
		},
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.IdentityPoolId), nil
}

// ensureRole gets or creates the authenticated-identity role and asserts its
// inline S3 policy (read-only unless writeAccess).
func (s *Service) ensureRole(ctx context.Context, identityPoolID string, writeAccess bool) (string, error) {
	roleName := s.roleName()

	var roleARN string
	got, err := s.IAM.GetRole(ctx, &iam.GetRoleInput{RoleName: &roleName})
	switch {
	case err == nil && got.Role != nil:
		roleARN = aws.ToString(got.Role.Arn)
	case err != nil:
		var nse *iamtypes.NoSuchEntityException
		if !errors.As(err, &nse) {
			return "", err
		}
		trust, merr := json.Marshal(trustPolicy(identityPoolID))
		if merr != nil {
			return "", merr
		}
		created, cerr := s.IAM.CreateRole(ctx, &iam.CreateRoleInput{
			RoleName:                 &roleName,
			AssumeRolePolicyDocument: aws.String(string(trust)),
		})
		if cerr != nil {
			return "", cerr
		}
		roleARN = aws.ToString(created.Role.Arn)
	}

	policy, err := json.Marshal(s.bucketPolicy(writeAccess))
	if err != nil {
		return "", err
	}
	_, err = s.IAM.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       &roleName,
		PolicyName:     aws.String(roleName + "-policy"),
		PolicyDocument: aws.String(string(policy)),
	})
	if err != nil {
		return "", err
	}
	return roleARN, nil
}

// policyDocument is the minimal IAM policy JSON shape the bootstrap writes.
type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string         `json:"Effect"`
	Principal map[string]any `json:"Principal,omitempty"`
	Action    any            `json:"Action"`
	Resource  any            `json:"Resource,omitempty"`
	Condition map[string]any `json:"Condition,omitempty"`
}

// trustPolicy lets identities from the identity pool assume the role.
func trustPolicy(identityPoolID string) policyDocument {
	return policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]any{"Federated": "cognito-identity.amazonaws.com"},
			Action:    "sts:AssumeRoleWithWebIdentity",
			Condition: map[string]any{
				"StringEquals": map[string]any{
					"cognito-identity.amazonaws.com:aud": identityPoolID,
				},
				"ForAnyValue:StringLike": map[string]any{
					"cognito-identity.amazonaws.com:amr": "authenticated",
				},
			},
		}},
	}
}

// bucketPolicy grants object access on the survey bucket.
func (s *Service) bucketPolicy(writeAccess bool) policyDocument {
	actions := []string{"s3:GetObject"}
	if writeAccess {
		actions = append(actions, "s3:PutObject")
	}
	return policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{{
			Effect: "Allow",
			Action: actions,
			Resource: []string{
				fmt.Sprintf("arn:aws:s3:::%s/*", s.Bucket),
				fmt.Sprintf("arn:aws:s3:::%s", s.Bucket),
			},
		}},
	}
}
