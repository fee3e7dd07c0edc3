// Package i18n holds the UI catalogues and language negotiation.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Default is used when nothing better matches.
const Default = "fr"

var supported = []language.Tag{language.French, language.English}

var matcher = language.NewMatcher(supported)

// Supported reports whether lang has a catalogue.
func Supported(lang string) bool {
	_, ok := catalogues[lang]
	return ok
}

// DetectLanguage picks a supported base language from an Accept-Language
// header, defaulting to Default.
func DetectLanguage(acceptLanguage string) string {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return Default
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// T translates code. Unknown languages fall back to Default and unknown
// codes are returned unchanged.
func T(lang, code string) string {
	if c, ok := catalogues[lang]; ok {
		if s, ok := c[code]; ok {
			return s
		}
	}
	if s, ok := catalogues[Default][code]; ok {
		return s
	}
	return code
}

var catalogues = map[string]map[string]string{
	"en": {
		// validation
		"required":         "Required",
		"too_short":        "Too short",
		"image_too_large":  "Image is larger than 5 MB",
		"not_an_image":     "Choose a JPEG, PNG, GIF or WebP image",
		"invalid_format":   "Invalid format",
		"invalid_choice":   "Choose one of the listed options",
		"not_a_number":     "Must be a number",
		"below_minimum":    "Below the minimum",
		"out_of_range":     "Out of the allowed range",
		"must_be_positive": "Must be positive",

		// navigation
		"nav_home":             "Home",
		"nav_loans":            "All loans",
		"nav_dashboard":        "Dashboard",
		"nav_login":            "Sign in",
		"nav_logout":           "Sign out",
		"nav_my_loans":         "My loans",
		"nav_profile":          "Profile",
		"nav_add_loan":         "Add loan",
		"nav_manage_loans":     "Manage loans",
		"nav_pending":          "Pending applications",
		"nav_approved":         "Approved applications",
		"nav_all_loans":        "All loans",
		"nav_all_applications": "Loan applications",
		"theme_toggle":         "Toggle theme",

		// guard and error pages
		"loading_title":     "Loading",
		"loading_body":      "Checking your access. This page refreshes on its own.",
		"loading_resubmit":  "We are still checking your access, so nothing was changed. Go back and submit again in a moment.",
		"loading_back":      "Go back",
		"forbidden_title":   "Access denied",
		"forbidden_body":    "Your account does not have access to this page.",
		"unavailable_title": "Temporarily unavailable",
		"unavailable_body":  "We could not confirm your access right now. Please try again.",
		"not_found_title":   "Loan not found",
		"not_found_body":    "This loan does not exist or was removed.",
		"error_title":       "Something went wrong",
		"error_backend":     "The loan service did not answer. Please retry.",
		"technical_details": "Technical details",
		"retry":             "Retry",
		"back_to_catalog":   "Back to all loans",
		"back_home":         "Back home",

		// lists
		"search_placeholder": "Search",
		"filter_category":    "Category",
		"filter_status":      "Status",
		"filter_all":         "All",
		"no_results":         "No results match your filters.",
		"clear_filters":      "Clear filters",
		"featured_loans":     "Featured loans",
		"see_all_loans":      "See all loans",

		// loans
		"loan_interest":  "Interest rate",
		"loan_max_limit": "Maximum amount",
		"loan_tenure":    "Tenure",
		"loan_emi_plans": "EMI plans",
		"loan_documents": "Required documents",
		"loan_category":  "Category",
		"apply_now":      "Apply now",
		"view_details":   "View details",
		"show_on_home":   "Show on home",

		// application
		"apply_title":         "Loan application",
		"apply_signin_title":  "Sign in to apply",
		"apply_signin_body":   "You need an account to apply. After signing in you will come back to this application.",
		"apply_signin_button": "Continue to sign in",
		"cancel":              "Cancel",
		"submit":              "Submit application",
		"submitted_title":     "Application submitted",
		"submitted_body":      "Keep this reference for your records:",
		"go_my_loans":         "View my applications",
		"field_firstName":     "First name",
		"field_lastName":      "Last name",
		"field_contactNumber": "Contact number",
		"field_nationalId":    "National ID",
		"field_incomeSource":  "Income source",
		"field_monthlyIncome": "Monthly income",
		"field_loanAmount":    "Loan amount",
		"field_reasonForLoan": "Reason for loan",
		"field_address":       "Address",
		"field_extraNotes":    "Extra notes",
		"field_email":         "Email",
		"field_loanTitle":     "Loan",
		"field_interestRate":  "Interest rate",

		// statuses and actions
		"status_Pending":     "Pending",
		"status_Approved":    "Approved",
		"status_Rejected":    "Rejected",
		"payment_Unpaid":     "Unpaid",
		"payment_Paid":       "Paid",
		"pay_fee":            "Pay fee",
		"payment_details":    "Payment details",
		"payment_success":    "Payment confirmed",
		"transaction_id":     "Transaction ID",
		"tracking_id":        "Tracking ID",
		"approve":            "Approve",
		"reject":             "Reject",
		"reject_reason":      "Reason (optional)",
		"delete":             "Delete",
		"edit":               "Edit",
		"save":               "Save",
		"confirm":            "Confirm",
		"confirm_approve":    "Approve this application?",
		"confirm_reject":     "Reject this application?",
		"confirm_delete":     "Delete this loan? This cannot be undone.",
		"confirm_cancel":     "Cancel this application?",
		"cancel_application": "Cancel application",

		// flashes
		"flash_application_submitted": "Application submitted",
		"flash_application_cancelled": "Application cancelled",
		"flash_not_deletable":         "Only pending applications can be cancelled",
		"flash_already_decided":       "This application was already decided",
		"flash_approved":              "Application approved",
		"flash_rejected":              "Application rejected",
		"flash_loan_saved":            "Loan saved",
		"flash_loan_deleted":          "Loan deleted",
		"flash_visibility_saved":      "Home page visibility updated",
		"flash_action_failed":         "The action failed. Please try again.",
		"flash_form_invalid":          "Please fix the highlighted fields",
		"flash_signed_out":            "You are signed out",
		"flash_signin_failed":         "Sign-in failed. Please try again.",
		"flash_already_paid":          "This fee is already paid",
		"flash_payment_failed":        "Payment could not be confirmed",
	},
	"fr": {
		"required":         "Requis",
		"too_short":        "Trop court",
		"image_too_large":  "L'image dépasse 5 Mo",
		"not_an_image":     "Choisissez une image JPEG, PNG, GIF ou WebP",
		"invalid_format":   "Format invalide",
		"invalid_choice":   "Choisissez une option de la liste",
		"not_a_number":     "Doit être un nombre",
		"below_minimum":    "Inférieur au minimum",
		"out_of_range":     "Hors de la plage autorisée",
		"must_be_positive": "Doit être positif",

		"nav_home":             "Accueil",
		"nav_loans":            "Tous les prêts",
		"nav_dashboard":        "Tableau de bord",
		"nav_login":            "Se connecter",
		"nav_logout":           "Se déconnecter",
		"nav_my_loans":         "Mes prêts",
		"nav_profile":          "Profil",
		"nav_add_loan":         "Ajouter un prêt",
		"nav_manage_loans":     "Gérer les prêts",
		"nav_pending":          "Demandes en attente",
		"nav_approved":         "Demandes approuvées",
		"nav_all_loans":        "Tous les prêts",
		"nav_all_applications": "Demandes de prêt",
		"theme_toggle":         "Changer de thème",

		"loading_title":     "Chargement",
		"loading_body":      "Vérification de vos accès. Cette page se recharge automatiquement.",
		"loading_resubmit":  "Vos accès sont encore en cours de vérification, rien n'a été modifié. Revenez en arrière et renvoyez dans un instant.",
		"loading_back":      "Revenir",
		"forbidden_title":   "Accès refusé",
		"forbidden_body":    "Votre compte n'a pas accès à cette page.",
		"unavailable_title": "Temporairement indisponible",
		"unavailable_body":  "Impossible de confirmer vos accès pour le moment. Réessayez.",
		"not_found_title":   "Prêt introuvable",
		"not_found_body":    "Ce prêt n'existe pas ou a été supprimé.",
		"error_title":       "Une erreur est survenue",
		"error_backend":     "Le service de prêts n'a pas répondu. Réessayez.",
		"technical_details": "Détails techniques",
		"retry":             "Réessayer",
		"back_to_catalog":   "Retour aux prêts",
		"back_home":         "Retour à l'accueil",

		"search_placeholder": "Rechercher",
		"filter_category":    "Catégorie",
		"filter_status":      "Statut",
		"filter_all":         "Tous",
		"no_results":         "Aucun résultat ne correspond à vos filtres.",
		"clear_filters":      "Effacer les filtres",
		"featured_loans":     "Prêts à la une",
		"see_all_loans":      "Voir tous les prêts",

		"loan_interest":  "Taux d'intérêt",
		"loan_max_limit": "Montant maximum",
		"loan_tenure":    "Durée",
		"loan_emi_plans": "Plans de mensualités",
		"loan_documents": "Documents requis",
		"loan_category":  "Catégorie",
		"apply_now":      "Postuler",
		"view_details":   "Voir le détail",
		"show_on_home":   "Afficher sur l'accueil",

		"apply_title":         "Demande de prêt",
		"apply_signin_title":  "Connectez-vous pour postuler",
		"apply_signin_body":   "Un compte est nécessaire. Après connexion vous reviendrez sur cette demande.",
		"apply_signin_button": "Continuer vers la connexion",
		"cancel":              "Annuler",
		"submit":              "Envoyer la demande",
		"submitted_title":     "Demande envoyée",
		"submitted_body":      "Conservez cette référence :",
		"go_my_loans":         "Voir mes demandes",
		"field_firstName":     "Prénom",
		"field_lastName":      "Nom",
		"field_contactNumber": "Téléphone",
		"field_nationalId":    "Pièce d'identité",
		"field_incomeSource":  "Source de revenus",
		"field_monthlyIncome": "Revenu mensuel",
		"field_loanAmount":    "Montant du prêt",
		"field_reasonForLoan": "Motif du prêt",
		"field_address":       "Adresse",
		"field_extraNotes":    "Notes",
		"field_email":         "E-mail",
		"field_loanTitle":     "Prêt",
		"field_interestRate":  "Taux d'intérêt",

		"status_Pending":     "En attente",
		"status_Approved":    "Approuvée",
		"status_Rejected":    "Refusée",
		"payment_Unpaid":     "Non payé",
		"payment_Paid":       "Payé",
		"pay_fee":            "Payer les frais",
		"payment_details":    "Détails du paiement",
		"payment_success":    "Paiement confirmé",
		"transaction_id":     "Identifiant de transaction",
		"tracking_id":        "Numéro de suivi",
		"approve":            "Approuver",
		"reject":             "Refuser",
		"reject_reason":      "Motif (facultatif)",
		"delete":             "Supprimer",
		"edit":               "Modifier",
		"save":               "Enregistrer",
		"confirm":            "Confirmer",
		"confirm_approve":    "Approuver cette demande ?",
		"confirm_reject":     "Refuser cette demande ?",
		"confirm_delete":     "Supprimer ce prêt ? Action irréversible.",
		"confirm_cancel":     "Annuler cette demande ?",
		"cancel_application": "Annuler la demande",

		"flash_application_submitted": "Demande envoyée",
		"flash_application_cancelled": "Demande annulée",
		"flash_not_deletable":         "Seules les demandes en attente peuvent être annulées",
		"flash_already_decided":       "Cette demande a déjà été traitée",
		"flash_approved":              "Demande approuvée",
		"flash_rejected":              "Demande refusée",
		"flash_loan_saved":            "Prêt enregistré",
		"flash_loan_deleted":          "Prêt supprimé",
		"flash_visibility_saved":      "Visibilité sur l'accueil mise à jour",
		"flash_action_failed":         "L'action a échoué. Réessayez.",
		"flash_form_invalid":          "Corrigez les champs signalés",
		"flash_signed_out":            "Vous êtes déconnecté",
		"flash_signin_failed":         "Échec de la connexion. Réessayez.",
		"flash_already_paid":          "Ces frais sont déjà payés",
		"flash_payment_failed":        "Le paiement n'a pas pu être confirmé",
	},
}
