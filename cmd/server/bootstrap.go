package main

import (
	"idhub/internal/domain"
	"idhub/internal/forms"
	"idhub/internal/registry"
	"idhub/internal/store"
)

// seedDev installs the baseline types, groups and the default signup form
// used when the process runs without external configuration management.
// Production deployments receive their forms from the admin subsystem.
func seedDev(attrTypes *registry.MemoryAttributeTypes, idTypes *registry.MemoryIdentityTypes, mem *store.Memory, formStore *forms.MemoryStore) error {
	attrTypes.Register(domain.AttributeType{Name: "email", ValueSyntax: "string", MaxElements: 1}, nil)
	attrTypes.Register(domain.AttributeType{Name: "nickname", ValueSyntax: "string", MaxElements: 1}, nil)
	idTypes.Register(domain.IdentityTypeDefinition{Name: "userName"})

	mem.RegisterGroup("/staff")

	return formStore.Install(&domain.RegistrationForm{
		Name: "signup",
		Attributes: []domain.AttributeRegistrationParam{
			{AttributeName: "email", Group: domain.RootGroup, Retrieval: domain.RetrievalInteractive},
		},
		Identities: []domain.IdentityRegistrationParam{
			{IdentityType: "userName", Retrieval: domain.RetrievalInteractive},
		},
		Groups: []domain.GroupRegistrationParam{
			{GroupPath: "/staff", Retrieval: domain.RetrievalInteractive},
		},
		Credentials: []domain.CredentialRegistrationParam{
			{CredentialName: "sys:password"},
		},
		Agreements: []domain.AgreementRegistrationParam{
			{Text: "I accept the terms of service", Mandatory: true},
		},
	})
}
