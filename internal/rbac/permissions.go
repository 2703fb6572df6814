package rbac

// PermAllModules is the superuser sentinel: a role holding it passes every
// permission check, including checks for permissions that do not exist in
// the catalog.
const PermAllModules = "all_modules"

const (
	PermUserManagement       = "user_management"
	PermSystemConfiguration  = "system_configuration"
	PermRoleManagement       = "role_management"
	PermPermissionManagement = "permission_management"
	PermCaseCreation         = "case_creation"
	PermCaseView             = "case_view"
	PermCaseManagement       = "case_management"
	PermDocumentUpload       = "document_upload"
	PermComplianceCheck      = "compliance_check"
	PermRiskAssessment       = "risk_assessment"
	PermBackgroundCheck      = "background_check"
	PermExternalAPIAccess    = "external_api_access"
	PermVerificationReports  = "verification_reports"
)

const (
	RoleAdmin              = "admin"
	RoleOnboardingOfficer  = "onboarding_officer"
	RoleComplianceReviewer = "compliance_reviewer"
	RoleVerifier           = "verifier"
)

// IsSystemRole reports whether the role id is one of the built-in roles.
// Deleting a system role requires an explicit confirmation (it is warned
// about, not prevented).
func IsSystemRole(roleID string) bool {
	switch roleID {
	case RoleAdmin, RoleOnboardingOfficer, RoleComplianceReviewer, RoleVerifier:
		return true
	}
	return false
}

// BuiltinPermissions is the default permission catalog seeded at startup.
var BuiltinPermissions = []Permission{
	{ID: PermAllModules, Name: "All Modules", Description: "Access to all system modules", Category: CategorySystem, Active: true},
	{ID: PermUserManagement, Name: "User Management", Description: "Manage system users", Category: CategoryUser, Active: true},
	{ID: PermSystemConfiguration, Name: "System Configuration", Description: "Configure system settings", Category: CategorySystem, Active: true},
	{ID: PermRoleManagement, Name: "Role Management", Description: "Manage roles and permissions", Category: CategoryRole, Active: true},
	{ID: PermPermissionManagement, Name: "Permission Management", Description: "Manage system permissions", Category: CategoryRole, Active: true},
	{ID: PermCaseCreation, Name: "Case Creation", Description: "Create new cases", Category: CategoryCase, Active: true},
	{ID: PermCaseView, Name: "Case View", Description: "View cases in read-only mode", Category: CategoryCase, Active: true},
	{ID: PermCaseManagement, Name: "Case Management", Description: "Edit and manage existing cases", Category: CategoryCase, Active: true},
	{ID: PermDocumentUpload, Name: "Document Upload", Description: "Upload case documents", Category: CategoryCase, Active: true},
	{ID: PermComplianceCheck, Name: "Compliance Check", Description: "Perform compliance checks", Category: CategoryCase, Active: true},
	{ID: PermRiskAssessment, Name: "Risk Assessment", Description: "Conduct risk assessments", Category: CategoryCase, Active: true},
	{ID: PermBackgroundCheck, Name: "Background Check", Description: "Perform background verifications", Category: CategoryCase, Active: true},
	{ID: PermExternalAPIAccess, Name: "External API Access", Description: "Access external APIs", Category: CategorySystem, Active: true},
	{ID: PermVerificationReports, Name: "Verification Reports", Description: "Generate verification reports", Category: CategoryReport, Active: true},
}

// DefaultRoles are the built-in system roles seeded at startup.
var DefaultRoles = []Role{
	{
		ID:          RoleAdmin,
		Name:        "System Administrator",
		Description: "Full system access and user management",
		Permissions: []string{PermAllModules, PermUserManagement, PermSystemConfiguration, PermRoleManagement, PermPermissionManagement},
		Active:      true,
	},
	{
		ID:          RoleOnboardingOfficer,
		Name:        "Onboarding Officer",
		Description: "Create new merchant onboarding cases and view existing ones",
		Permissions: []string{PermCaseCreation, PermCaseView, PermDocumentUpload},
		Active:      true,
	},
	{
		ID:          RoleComplianceReviewer,
		Name:        "Compliance Reviewer",
		Description: "Review and edit cases for regulatory compliance",
		Permissions: []string{PermCaseView, PermCaseManagement, PermComplianceCheck, PermRiskAssessment, PermDocumentUpload},
		Active:      true,
	},
	{
		ID:          RoleVerifier,
		Name:        "Background Verifier",
		Description: "Conduct background verification processes",
		Permissions: []string{PermCaseView, PermBackgroundCheck, PermExternalAPIAccess, PermVerificationReports},
		Active:      true,
	},
}
