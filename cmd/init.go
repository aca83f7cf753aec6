package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the aragora workdir",
	Long: `Initialize the aragora workdir by creating the persisted-state
directory tree and a template agent roster / .env file.

This command will:
1. Create the data directory (debates.db, ratings.db, memory.db, webhook.db)
2. Create a template agents.json roster if it doesn't exist
3. Create a template .env file if it doesn't exist`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Initializing aragora workdir...")

		if err := os.MkdirAll("data", 0755); err != nil {
			fmt.Printf("Error creating data directory: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Created directory: data")

		if _, err := os.Stat("agents.json"); os.IsNotExist(err) {
			template := `[
  {
    "name": "proposer-a",
    "role": "proposer",
    "model": "gpt-4o-mini",
    "agent_type": "http-openai-shape"
  },
  {
    "name": "proposer-b",
    "role": "proposer",
    "model": "claude-3-5-sonnet-20241022",
    "agent_type": "http-anthropic-shape"
  },
  {
    "name": "critic",
    "role": "critic",
    "model": "gpt-4o-mini",
    "agent_type": "http-openai-shape"
  }
]
`
			if err := os.WriteFile("agents.json", []byte(template), 0644); err != nil {
				fmt.Printf("Error creating agents.json template: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("✓ Created agents.json template file")
		}

		if _, err := os.Stat(".env"); os.IsNotExist(err) {
			envContent := `# LLM provider keys (required by the agent_types referenced in agents.json)
OPENAI_API_KEY=your_key_here
ANTHROPIC_API_KEY=your_key_here

# Server configuration
PORT=8080
ARAGORA_ALLOWED_ORIGINS=*
ARAGORA_WS_MAX_SIZE=65536

# JWT secret for bearer-token issuance (spec §6 Authentication)
JWT_SECRET=change_me
`
			if err := os.WriteFile(".env", []byte(envContent), 0644); err != nil {
				fmt.Printf("Error creating .env template: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("✓ Created .env template file")
		}

		fmt.Println("\nInitialization complete!")
		fmt.Println("\nNext steps:")
		fmt.Println("1. Edit .env and agents.json with your provider keys and roster")
		fmt.Println("2. Run migrations:  aragora migrate")
		fmt.Println("3. Start the server: aragora serve")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
