// Package envfile renders decrypted settings as a dotenv file and reads
// such files back.
//
//	{"AzureOpenAI": {"ApiKey": "k 1"}, "Model": "gpt-4o"}
//
// becomes
//
//	AZUREOPENAI__APIKEY="k 1"
//	MODEL=gpt-4o
package envfile
