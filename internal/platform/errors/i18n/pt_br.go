package i18n

var ptBRCatalog = &Catalog{
	locale: "pt-BR",
	messages: map[Code]string{
		CodeUnknown: "Algo deu errado. Tente novamente.",

		// Credential provider errors
		CodeInvalidCredentials: "Email ou senha incorretos",
		CodeWeakPassword:       "A senha deve ter pelo menos {{.MinLength}} caracteres",
		CodeEmailInUse:         "Já existe uma conta para {{.Email}}",
		CodeAccountDisabled:    "Esta conta foi desativada",
		CodeRateLimited:        "Muitas tentativas. Aguarde e tente novamente.",
		CodeNetworkUnavailable: "Sem conexão. Verifique sua rede e tente novamente.",

		// Account validation errors
		CodeEmailEmpty:       "O email é obrigatório",
		CodeEmailInvalid:     "Informe um email válido",
		CodePasswordTooShort: "A senha deve ter pelo menos {{.MinLength}} caracteres",
		CodeDisplayNameEmpty: "O nome de exibição é obrigatório",
		CodeRoleInvalid:      "O tipo de conta deve ser atleta ou treinador",

		// Session errors
		CodeSessionInvalidTransition: "Essa ação não está disponível no momento",
		CodeSessionNotSignedIn:       "Entre para continuar",
		CodeOperationCanceled:        "A solicitação foi cancelada",

		// Profile errors
		CodeProfileConflict: "Não foi possível salvar seu perfil. Tente novamente.",

		// Storage errors
		CodeNotFound: "O registro solicitado não foi encontrado",
	},
}
